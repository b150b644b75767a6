package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ewintr.nl/tutorai/model"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMerge(t *testing.T) {
	for _, tc := range []struct {
		name     string
		segments []model.Segment
		exp      []model.Chunk
	}{
		{
			name: "empty",
			exp:  []model.Chunk{},
		},
		{
			name:     "single long segment is not split",
			segments: []model.Segment{{StartTime: 0, EndTime: 40, Text: "Hello world."}},
			exp:      []model.Chunk{{StartTime: 0, EndTime: 40, Text: "Hello world."}},
		},
		{
			name: "window reached at sentence end",
			segments: []model.Segment{
				{StartTime: 0, EndTime: 10, Text: "Hi."},
				{StartTime: 10, EndTime: 35, Text: "Bye."},
			},
			exp: []model.Chunk{
				{StartTime: 0, EndTime: 10, Text: "Hi."},
				{StartTime: 10, EndTime: 35, Text: "Bye."},
			},
		},
		{
			name: "window not reached",
			segments: []model.Segment{
				{StartTime: 0, EndTime: 10, Text: "Hi."},
				{StartTime: 10, EndTime: 20, Text: "Bye."},
			},
			exp: []model.Chunk{{StartTime: 0, EndTime: 20, Text: "Hi. Bye."}},
		},
		{
			name: "no sentence end keeps extending",
			segments: []model.Segment{
				{StartTime: 0, EndTime: 20, Text: "and then"},
				{StartTime: 20, EndTime: 40, Text: "we go on"},
				{StartTime: 40, EndTime: 50, Text: "and stop!  "},
				{StartTime: 50, EndTime: 60, Text: "New part"},
			},
			exp: []model.Chunk{
				{StartTime: 0, EndTime: 50, Text: "and then we go on and stop!  "},
				{StartTime: 50, EndTime: 60, Text: "New part"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, Merge(tc.segments, DefaultMergeWindow))
		})
	}
}

func TestMergeOrdering(t *testing.T) {
	segments := []model.Segment{}
	words := []string{}
	for i := 0; i < 200; i++ {
		text := "word"
		if i%7 == 0 {
			text = "end."
		}
		words = append(words, text)
		segments = append(segments, model.Segment{StartTime: float64(i * 3), EndTime: float64(i*3 + 4), Text: text})
	}

	chunks := Merge(segments, DefaultMergeWindow)
	require.NotEmpty(t, chunks)

	texts := []string{}
	for i, c := range chunks {
		assert.GreaterOrEqual(t, c.EndTime, c.StartTime)
		if i > 0 {
			assert.GreaterOrEqual(t, c.StartTime, chunks[i-1].StartTime)
		}
		texts = append(texts, c.Text)
	}
	assert.Equal(t, strings.Join(words, " "), strings.Join(texts, " "))
}

func TestParseJSON3(t *testing.T) {
	data := []byte(`{"events": [
		{"tStartMs": 0, "dDurationMs": 2500, "segs": [{"utf8": "Hello"}, {"utf8": " world "}]},
		{"tStartMs": 2500, "dDurationMs": 1000, "segs": [{"utf8": "\n"}]},
		{"tStartMs": 3000, "dDurationMs": 500},
		{"tStartMs": 4000, "dDurationMs": 2000, "segs": [{"utf8": "again."}]}
	]}`)

	act, err := ParseJSON3(data)
	require.NoError(t, err)
	assert.Equal(t, []model.Segment{
		{StartTime: 0, EndTime: 2.5, Text: "Hello world"},
		{StartTime: 4, EndTime: 6, Text: "again."},
	}, act)

	_, err = ParseJSON3([]byte("not json"))
	assert.Error(t, err)
}

type fakeCaptions struct {
	segments []model.Segment
	err      error
}

func (f fakeCaptions) FetchCaptions(_ context.Context, _ model.YoutubeVideoID, _ string) ([]model.Segment, error) {
	return f.segments, f.err
}

type fakeAudio struct {
	size    int
	fetched atomic.Int32
	err     error
}

func (f *fakeAudio) FetchAudio(_ context.Context, _ model.YoutubeVideoID) (string, func(), error) {
	f.fetched.Add(1)
	if f.err != nil {
		return "", nil, f.err
	}
	dir, err := os.MkdirTemp("", "audio-test-")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(path, make([]byte, f.size), 0o600); err != nil {
		return "", nil, err
	}
	return path, func() { os.RemoveAll(dir) }, nil
}

type fakeSTT struct {
	segments []model.Segment
	err      error
	delay    time.Duration

	mu      sync.Mutex
	active  int
	maxSeen int
}

func (f *fakeSTT) Transcribe(_ context.Context, _ string) ([]model.Segment, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	return f.segments, f.err
}

func TestAcquirer(t *testing.T) {
	ctx := context.Background()
	sttSegments := []model.Segment{{StartTime: 0, EndTime: 5, Text: "Spoken."}}

	t.Run("captions first", func(t *testing.T) {
		audio := &fakeAudio{}
		a := NewAcquirer(fakeCaptions{segments: []model.Segment{{StartTime: 0, EndTime: 3, Text: "Captioned."}}}, audio, &fakeSTT{}, AcquirerConfig{}, testLogger())
		res, err := a.Acquire(ctx, "abcdefghijk")
		require.NoError(t, err)
		assert.Equal(t, model.ProvenanceCaptions, res.Provenance)
		require.Len(t, res.Chunks, 1)
		assert.Equal(t, "Captioned.", res.Chunks[0].Text)
		assert.Equal(t, int32(0), audio.fetched.Load())
	})

	t.Run("caption error falls back", func(t *testing.T) {
		a := NewAcquirer(fakeCaptions{err: errors.New("yt-dlp failed")}, &fakeAudio{size: 10}, &fakeSTT{segments: sttSegments}, AcquirerConfig{}, testLogger())
		res, err := a.Acquire(ctx, "abcdefghijk")
		require.NoError(t, err)
		assert.Equal(t, model.ProvenanceSpeechToText, res.Provenance)
		assert.Equal(t, "Spoken.", res.Chunks[0].Text)
	})

	t.Run("no captions falls back", func(t *testing.T) {
		a := NewAcquirer(fakeCaptions{}, &fakeAudio{size: 10}, &fakeSTT{segments: sttSegments}, AcquirerConfig{}, testLogger())
		res, err := a.Acquire(ctx, "abcdefghijk")
		require.NoError(t, err)
		assert.Equal(t, model.ProvenanceSpeechToText, res.Provenance)
	})

	t.Run("audio too large", func(t *testing.T) {
		stt := &fakeSTT{segments: sttSegments}
		a := NewAcquirer(fakeCaptions{}, &fakeAudio{size: 101}, stt, AcquirerConfig{MaxAudioBytes: 100}, testLogger())
		_, err := a.Acquire(ctx, "abcdefghijk")
		assert.ErrorIs(t, err, ErrAudioTooLarge)
		assert.Equal(t, 0, stt.maxSeen)
	})

	t.Run("empty transcription", func(t *testing.T) {
		a := NewAcquirer(fakeCaptions{}, &fakeAudio{size: 10}, &fakeSTT{}, AcquirerConfig{}, testLogger())
		_, err := a.Acquire(ctx, "abcdefghijk")
		assert.ErrorIs(t, err, ErrNoTranscript)
	})

	t.Run("transcription error", func(t *testing.T) {
		a := NewAcquirer(fakeCaptions{}, &fakeAudio{size: 10}, &fakeSTT{err: errors.New("quota")}, AcquirerConfig{}, testLogger())
		_, err := a.Acquire(ctx, "abcdefghijk")
		assert.EqualError(t, err, "quota")
	})

	t.Run("concurrent transcriptions are capped", func(t *testing.T) {
		stt := &fakeSTT{segments: sttSegments, delay: 20 * time.Millisecond}
		a := NewAcquirer(fakeCaptions{}, &fakeAudio{size: 10}, stt, AcquirerConfig{MaxConcurrentTranscriptions: 2}, testLogger())

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := a.Acquire(ctx, "abcdefghijk")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, stt.maxSeen, 2)
	})
}

func TestTranscriptionSegments(t *testing.T) {
	var resp openai.AudioResponse
	require.NoError(t, json.Unmarshal([]byte(`{"segments":[
		{"start":0,"end":1.5,"text":"   "},
		{"start":1.5,"end":4,"text":" Hello there. "},
		{"start":4,"end":5,"text":""},
		{"start":5,"end":8,"text":"Welcome back."}
	]}`), &resp))

	act := transcriptionSegments(resp)
	assert.Equal(t, []model.Segment{
		{StartTime: 1.5, EndTime: 4, Text: "Hello there."},
		{StartTime: 5, EndTime: 8, Text: "Welcome back."},
	}, act)

	chunks := Merge(act, DefaultMergeWindow)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello there. Welcome back.", chunks[0].Text)
}
