package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ewintr.nl/tutorai/fetcher"
	"ewintr.nl/tutorai/model"
)

// CaptionSource returns nil segments and no error when a video has no
// captions in the requested language.
type CaptionSource interface {
	FetchCaptions(ctx context.Context, ytID model.YoutubeVideoID, lang string) ([]model.Segment, error)
}

type YtDlpCaptions struct {
	bin string
}

func NewYtDlpCaptions(bin string) *YtDlpCaptions {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlpCaptions{bin: bin}
}

func (y *YtDlpCaptions) FetchCaptions(ctx context.Context, ytID model.YoutubeVideoID, lang string) ([]model.Segment, error) {
	dir, err := os.MkdirTemp("", "tutorai-subs-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, y.bin,
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", "json3",
		"--quiet", "--no-warnings",
		"--output", filepath.Join(dir, "subs"),
		fetcher.WatchURL(ytID),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json3"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		return nil, err
	}

	return ParseJSON3(data)
}

type json3 struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// ParseJSON3 turns a YouTube json3 caption payload into segments, one per
// event that has visible text.
func ParseJSON3(data []byte) ([]model.Segment, error) {
	var payload json3
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("could not parse captions: %w", err)
	}

	segments := []model.Segment{}
	for _, event := range payload.Events {
		parts := []string{}
		for _, seg := range event.Segs {
			if text := strings.TrimSpace(seg.UTF8); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			continue
		}
		segments = append(segments, model.Segment{
			StartTime: float64(event.TStartMs) / 1000,
			EndTime:   float64(event.TStartMs+event.DDurationMs) / 1000,
			Text:      strings.Join(parts, " "),
		})
	}

	return segments, nil
}
