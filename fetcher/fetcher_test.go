package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"ewintr.nl/tutorai/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/youtube/v3"
	"miniflux.app/client"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractVideoID(t *testing.T) {
	for _, tc := range []struct {
		name   string
		url    string
		exp    model.YoutubeVideoID
		expErr bool
	}{
		{name: "watch", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "watch without www", url: "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", exp: "dQw4w9WgXcQ"},
		{name: "watch without scheme", url: "youtube.com/watch?v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "short link", url: "https://youtu.be/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "short link with query", url: "youtu.be/dQw4w9WgXcQ?si=abc", exp: "dQw4w9WgXcQ"},
		{name: "embed", url: "https://www.youtube.com/embed/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ"},
		{name: "shorts", url: "https://youtube.com/shorts/a_b-c1D2e3F", exp: "a_b-c1D2e3F"},
		{name: "other site", url: "https://vimeo.com/123456789", expErr: true},
		{name: "id too short", url: "https://youtu.be/short", expErr: true},
		{name: "empty", url: "", expErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act, err := ExtractVideoID(tc.url)
			if tc.expErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exp, act)
		})
	}
}

func TestParseISODuration(t *testing.T) {
	for _, tc := range []struct {
		in     string
		exp    time.Duration
		expErr bool
	}{
		{in: "PT1H2M3S", exp: time.Hour + 2*time.Minute + 3*time.Second},
		{in: "PT15M", exp: 15 * time.Minute},
		{in: "PT45S", exp: 45 * time.Second},
		{in: "P1DT2H", exp: 26 * time.Hour},
		{in: "P0D", exp: 0},
		{in: "", exp: 0},
		{in: "1h2m", expErr: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			act, err := parseISODuration(tc.in)
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exp, act)
		})
	}
}

func TestMetadataFromItem(t *testing.T) {
	t.Run("public", func(t *testing.T) {
		md, err := metadataFromItem(&youtube.Video{
			Snippet:        &youtube.VideoSnippet{Title: "Go", ChannelTitle: "gophers", LiveBroadcastContent: "none"},
			ContentDetails: &youtube.VideoContentDetails{Duration: "PT10M"},
			Status:         &youtube.VideoStatus{PrivacyStatus: "public"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Go", md.Title)
		assert.Equal(t, "gophers", md.Uploader)
		assert.Equal(t, 10*time.Minute, md.Duration)
		assert.False(t, md.IsLive)
	})

	t.Run("live", func(t *testing.T) {
		md, err := metadataFromItem(&youtube.Video{
			Snippet: &youtube.VideoSnippet{LiveBroadcastContent: "live"},
		})
		require.NoError(t, err)
		assert.True(t, md.IsLive)
	})

	t.Run("private", func(t *testing.T) {
		_, err := metadataFromItem(&youtube.Video{Status: &youtube.VideoStatus{PrivacyStatus: "private"}})
		assert.ErrorIs(t, err, ErrPrivate)
	})

	t.Run("age restricted", func(t *testing.T) {
		_, err := metadataFromItem(&youtube.Video{
			ContentDetails: &youtube.VideoContentDetails{ContentRating: &youtube.ContentRating{YtRating: "ytAgeRestricted"}},
		})
		assert.ErrorIs(t, err, ErrAgeRestricted)
	})
}

func TestClassifyYtDlpError(t *testing.T) {
	for _, tc := range []struct {
		msg string
		exp error
	}{
		{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access", ErrPrivate},
		{"ERROR: Sign in to confirm your age", ErrAgeRestricted},
		{"ERROR: Video unavailable", ErrUnavailable},
		{"ERROR: This video is not available in your country", ErrUnavailable},
		{"ERROR: HTTP Error 500", ErrAccess},
	} {
		t.Run(tc.msg, func(t *testing.T) {
			assert.ErrorIs(t, classifyYtDlpError(tc.msg), tc.exp)
		})
	}
}

type fakeMetadata struct {
	md  Metadata
	err error
}

func (f fakeMetadata) FetchMetadata(_ context.Context, _ model.YoutubeVideoID) (Metadata, error) {
	return f.md, f.err
}

func TestValidator(t *testing.T) {
	ctx := context.Background()
	url := "https://youtu.be/dQw4w9WgXcQ"

	t.Run("invalid url", func(t *testing.T) {
		v := NewValidator(fakeMetadata{}, 0, testLogger())
		_, _, err := v.Validate(ctx, "not a url")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("metadata failure", func(t *testing.T) {
		v := NewValidator(fakeMetadata{err: ErrPrivate}, 0, testLogger())
		_, _, err := v.Validate(ctx, url)
		assert.ErrorIs(t, err, ErrPrivate)
	})

	t.Run("live", func(t *testing.T) {
		v := NewValidator(fakeMetadata{md: Metadata{IsLive: true}}, 0, testLogger())
		_, _, err := v.Validate(ctx, url)
		assert.ErrorIs(t, err, ErrLive)
	})

	t.Run("long video is accepted", func(t *testing.T) {
		v := NewValidator(fakeMetadata{md: Metadata{Title: "long", Duration: 5 * time.Hour}}, 0, testLogger())
		ytID, md, err := v.Validate(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, model.YoutubeVideoID("dQw4w9WgXcQ"), ytID)
		assert.Equal(t, "long", md.Title)
	})
}

type fakeFeedReader struct {
	entries []FeedEntry
	read    []int64
}

func (f *fakeFeedReader) Unread() ([]FeedEntry, error) { return f.entries, nil }

func (f *fakeFeedReader) MarkRead(entryID int64) error {
	f.read = append(f.read, entryID)
	return nil
}

type fakeSubmitter struct {
	errs map[string]error
	urls []string
}

func (f *fakeSubmitter) Submit(_ context.Context, url string) (*model.Video, bool, error) {
	f.urls = append(f.urls, url)
	if err := f.errs[url]; err != nil {
		return nil, false, err
	}
	ytID, _ := ExtractVideoID(url)
	return model.NewVideo(ytID, "", url), true, nil
}

func TestFetcherReadFeeds(t *testing.T) {
	reader := &fakeFeedReader{entries: []FeedEntry{
		{EntryID: 1, URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
		{EntryID: 2, URL: "https://example.com/blog"},
		{EntryID: 3, URL: "https://www.youtube.com/watch?v=ccccccccccc"},
	}}
	submitter := &fakeSubmitter{errs: map[string]error{
		"https://example.com/blog":                    ErrInvalidURL,
		"https://www.youtube.com/watch?v=ccccccccccc": errors.New("database down"),
	}}

	f := NewFetch(reader, submitter, testLogger())
	require.NoError(t, f.ReadFeeds(context.Background()))

	assert.Len(t, submitter.urls, 3)
	assert.Equal(t, []int64{1, 2}, reader.read)
}

func TestIsRejected(t *testing.T) {
	assert.True(t, IsRejected(ErrLive))
	assert.True(t, IsRejected(classifyYtDlpError("boom")))
	assert.False(t, IsRejected(errors.New("boom")))
}

func TestYoutubeEntries(t *testing.T) {
	act := youtubeEntries(client.Entries{
		{ID: 1, FeedID: 7, URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Title: "first"},
		{ID: 2, FeedID: 7, URL: "https://example.com/blog", Title: "blog"},
		{ID: 3, FeedID: 8, URL: "https://youtu.be/ccccccccccc", Title: "third"},
	})

	assert.Equal(t, []FeedEntry{
		{EntryID: 1, FeedID: 7, URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Title: "first", YoutubeID: "aaaaaaaaaaa"},
		{EntryID: 3, FeedID: 8, URL: "https://youtu.be/ccccccccccc", Title: "third", YoutubeID: "ccccccccccc"},
	}, act)
}
