package handler

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/storage"
	"github.com/google/uuid"
)

const (
	defaultWindowBefore = 60.0
	defaultWindowAfter  = 30.0
)

type TranscriptAPI struct {
	videos storage.VideoRepository
	chunks storage.ChunkRepository
	logger *slog.Logger
}

func NewTranscriptAPI(videos storage.VideoRepository, chunks storage.ChunkRepository, logger *slog.Logger) *TranscriptAPI {
	return &TranscriptAPI{
		videos: videos,
		chunks: chunks,
		logger: logger,
	}
}

func (t *TranscriptAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		Message(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	head, tail := ShiftPath(r.URL.Path)
	subHead, _ := ShiftPath(tail)
	switch {
	case head != "" && tail == "/":
		t.Full(w, r, head)
	case head != "" && subHead == "window":
		t.Window(w, r, head)
	default:
		Message(w, http.StatusNotFound, "not found")
	}
}

type transcriptResponse struct {
	VideoID    uuid.UUID        `json:"video_id"`
	Provenance model.Provenance `json:"provenance,omitempty"`
	Chunks     []model.Chunk    `json:"chunks"`
}

func (t *TranscriptAPI) Full(w http.ResponseWriter, r *http.Request, rawID string) {
	video, ok := t.find(w, r, rawID)
	if !ok {
		return
	}
	chunks, err := t.chunks.FindByVideo(r.Context(), video.ID)
	if err != nil {
		returnErr(t.logger, w, err, slog.String("video_id", rawID))
		return
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}

	JSON(w, http.StatusOK, transcriptResponse{
		VideoID:    video.ID,
		Provenance: video.Provenance,
		Chunks:     chunks,
	})
}

type windowResponse struct {
	VideoID   uuid.UUID     `json:"video_id"`
	Timestamp float64       `json:"timestamp"`
	Start     float64       `json:"start"`
	End       float64       `json:"end"`
	Chunks    []model.Chunk `json:"chunks"`
}

func (t *TranscriptAPI) Window(w http.ResponseWriter, r *http.Request, rawID string) {
	query := r.URL.Query()
	ts, err := floatParam(query.Get("timestamp"), -1)
	if err != nil || ts < 0 {
		Message(w, http.StatusBadRequest, "timestamp must be a number of seconds, zero or more")
		return
	}
	before, err := floatParam(query.Get("window_before"), defaultWindowBefore)
	if err != nil || before < 0 {
		Message(w, http.StatusBadRequest, "window_before must be zero or more")
		return
	}
	after, err := floatParam(query.Get("window_after"), defaultWindowAfter)
	if err != nil || after < 0 {
		Message(w, http.StatusBadRequest, "window_after must be zero or more")
		return
	}

	video, ok := t.find(w, r, rawID)
	if !ok {
		return
	}
	start, end := math.Max(0, ts-before), ts+after
	chunks, err := t.chunks.FindInWindow(r.Context(), video.ID, start, end)
	if err != nil {
		returnErr(t.logger, w, err, slog.String("video_id", rawID))
		return
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}

	JSON(w, http.StatusOK, windowResponse{
		VideoID:   video.ID,
		Timestamp: ts,
		Start:     start,
		End:       end,
		Chunks:    chunks,
	})
}

func (t *TranscriptAPI) find(w http.ResponseWriter, r *http.Request, rawID string) (*model.Video, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid video id", err)
		return nil, false
	}
	video, err := t.videos.FindByID(r.Context(), id)
	if err != nil {
		returnErr(t.logger, w, err, slog.String("video_id", rawID))
		return nil, false
	}
	return video, true
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrRange
	}
	return f, nil
}
