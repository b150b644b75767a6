package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"ewintr.nl/tutorai/model"
)

// YtDlp reads metadata with the yt-dlp binary. It is used when no Data API
// key is configured.
type YtDlp struct {
	bin string
}

func NewYtDlp(bin string) *YtDlp {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlp{bin: bin}
}

type ytDlpInfo struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Uploader     string  `json:"uploader"`
	Duration     float64 `json:"duration"`
	IsLive       bool    `json:"is_live"`
	Availability string  `json:"availability"`
}

func (y *YtDlp) FetchMetadata(ctx context.Context, ytID model.YoutubeVideoID) (Metadata, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.bin, "--dump-json", "--skip-download", "--no-warnings", "--quiet", WatchURL(ytID))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Metadata{}, classifyYtDlpError(msg)
	}

	var info ytDlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return Metadata{}, fmt.Errorf("%w: could not parse yt-dlp output: %v", ErrAccess, err)
	}
	if info.Title == "" {
		info.Title = "Unknown Title"
	}
	if info.Availability == "" {
		info.Availability = "public"
	}

	return Metadata{
		Title:        info.Title,
		Description:  info.Description,
		Uploader:     info.Uploader,
		Duration:     time.Duration(info.Duration * float64(time.Second)),
		IsLive:       info.IsLive,
		Availability: info.Availability,
	}, nil
}

func classifyYtDlpError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "private"):
		return ErrPrivate
	case strings.Contains(lower, "age"):
		return ErrAgeRestricted
	case strings.Contains(lower, "unavailable"), strings.Contains(lower, "not available"):
		return ErrUnavailable
	default:
		return fmt.Errorf("%w: %s", ErrAccess, msg)
	}
}
