package fetcher

import (
	"errors"
	"regexp"

	"ewintr.nl/tutorai/model"
)

var ErrInvalidURL = errors.New("invalid YouTube URL, please provide a valid YouTube video link")

// order matters, the first match wins
var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

func ExtractVideoID(url string) (model.YoutubeVideoID, error) {
	for _, p := range videoURLPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return model.YoutubeVideoID(m[1]), nil
		}
	}

	return "", ErrInvalidURL
}

func WatchURL(ytID model.YoutubeVideoID) string {
	return "https://www.youtube.com/watch?v=" + string(ytID)
}
