package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ewintr.nl/tutorai/fetcher"
	"ewintr.nl/tutorai/model"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// AudioSource downloads the audio track of a video to a local file. The
// caller must call cleanup when done with the file.
type AudioSource interface {
	FetchAudio(ctx context.Context, ytID model.YoutubeVideoID) (path string, cleanup func(), err error)
}

type YtDlpAudio struct {
	bin    string
	logger *slog.Logger
}

func NewYtDlpAudio(bin string, logger *slog.Logger) *YtDlpAudio {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlpAudio{bin: bin, logger: logger}
}

func (y *YtDlpAudio) FetchAudio(ctx context.Context, ytID model.YoutubeVideoID) (string, func(), error) {
	dir, err := os.MkdirTemp("", "tutorai-audio-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	y.logger.Info("downloading audio", slog.String("video", string(ytID)))
	cmd := exec.CommandContext(ctx, y.bin,
		"--format", "worstaudio/worst",
		"--quiet", "--no-warnings",
		"--output", filepath.Join(dir, "raw.%(ext)s"),
		fetcher.WatchURL(ytID),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to download audio: %w: %s", err, strings.TrimSpace(string(output)))
	}

	raws, err := filepath.Glob(filepath.Join(dir, "raw.*"))
	if err != nil || len(raws) == 0 {
		cleanup()
		return "", nil, fmt.Errorf("audio file not found after download")
	}
	raw := raws[0]

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		y.logger.Warn("ffmpeg not found, using raw audio which may be larger", slog.String("video", string(ytID)))
		return raw, cleanup, nil
	}

	mp3 := filepath.Join(dir, "audio.mp3")
	if err := ffmpeg.Input(raw).
		Output(mp3, ffmpeg.KwArgs{
			"ac":  1,
			"c:a": "libmp3lame",
			"q:a": 9,
		}).
		OverWriteOutput().
		Silent(true).
		Run(); err != nil {
		y.logger.Warn("transcoding failed, using raw audio", slog.String("video", string(ytID)), slog.String("error", err.Error()))
		return raw, cleanup, nil
	}

	return mp3, cleanup, nil
}
