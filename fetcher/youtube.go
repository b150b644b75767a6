package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"ewintr.nl/tutorai/model"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type Youtube struct {
	Client *youtube.Service
}

func NewYoutube(client *youtube.Service) *Youtube {
	return &Youtube{Client: client}
}

func NewYoutubeWithAPIKey(ctx context.Context, apiKey string) (*Youtube, error) {
	client, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return &Youtube{}, err
	}

	return NewYoutube(client), nil
}

func (y *Youtube) FetchMetadata(ctx context.Context, ytID model.YoutubeVideoID) (Metadata, error) {
	call := y.Client.Videos.
		List([]string{"snippet", "contentDetails", "status"}).
		Id(string(ytID)).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrAccess, err)
	}
	if len(response.Items) == 0 {
		return Metadata{}, ErrUnavailable
	}

	return metadataFromItem(response.Items[0])
}

func metadataFromItem(item *youtube.Video) (Metadata, error) {
	md := Metadata{Availability: "public"}
	if item.Status != nil {
		if item.Status.PrivacyStatus == "private" {
			return Metadata{}, ErrPrivate
		}
		if item.Status.PrivacyStatus != "" {
			md.Availability = item.Status.PrivacyStatus
		}
	}
	if item.ContentDetails != nil {
		if item.ContentDetails.ContentRating != nil && item.ContentDetails.ContentRating.YtRating == "ytAgeRestricted" {
			return Metadata{}, ErrAgeRestricted
		}
		d, err := parseISODuration(item.ContentDetails.Duration)
		if err != nil {
			return Metadata{}, err
		}
		md.Duration = d
	}
	if item.Snippet != nil {
		md.Title = item.Snippet.Title
		md.Description = item.Snippet.Description
		md.Uploader = item.Snippet.ChannelTitle
		switch item.Snippet.LiveBroadcastContent {
		case "live", "upcoming":
			md.IsLive = true
		}
	}

	return md, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration handles the subset of ISO-8601 durations the Data API
// returns for videos, e.g. PT1H2M3S or P1DT2H.
func parseISODuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("could not parse duration %q", s)
	}

	var d time.Duration
	for i, unit := range []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, err
		}
		d += time.Duration(n) * unit
	}

	return d, nil
}
