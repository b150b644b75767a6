package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/storage"
	"github.com/google/uuid"
)

type Submitter interface {
	SubmitFor(ctx context.Context, userID, url string) (*model.Video, bool, error)
}

type VideoAPI struct {
	submitter Submitter
	videos    storage.VideoRepository
	logger    *slog.Logger
}

func NewVideoAPI(submitter Submitter, videos storage.VideoRepository, logger *slog.Logger) *VideoAPI {
	return &VideoAPI{
		submitter: submitter,
		videos:    videos,
		logger:    logger,
	}
}

func (v *VideoAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	head, tail := ShiftPath(r.URL.Path)
	subHead, _ := ShiftPath(tail)
	switch {
	case head == "" && r.Method == http.MethodPost:
		v.Submit(w, r)
	case head != "" && tail == "/" && r.Method == http.MethodGet:
		v.Get(w, r, head)
	case head != "" && subHead == "status" && r.Method == http.MethodGet:
		v.Status(w, r, head)
	default:
		Message(w, http.StatusNotFound, "not found")
	}
}

type submitRequest struct {
	URL string `json:"url"`
}

func (v *VideoAPI) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.URL == "" {
		Message(w, http.StatusBadRequest, "url is required")
		return
	}

	user, _ := UserFromContext(r.Context())
	video, queued, err := v.submitter.SubmitFor(r.Context(), user.ID, req.URL)
	if err != nil {
		returnErr(v.logger, w, err, slog.String("url", req.URL))
		return
	}

	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	JSON(w, status, video)
}

func (v *VideoAPI) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	video, ok := v.find(w, r, rawID)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, video)
}

func (v *VideoAPI) Status(w http.ResponseWriter, r *http.Request, rawID string) {
	video, ok := v.find(w, r, rawID)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, struct {
		ID     uuid.UUID         `json:"id"`
		Status model.VideoStatus `json:"status"`
	}{
		ID:     video.ID,
		Status: video.Status,
	})
}

func (v *VideoAPI) find(w http.ResponseWriter, r *http.Request, rawID string) (*model.Video, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid video id", err)
		return nil, false
	}
	video, err := v.videos.FindByID(r.Context(), id)
	if err != nil {
		returnErr(v.logger, w, err, slog.String("video_id", rawID))
		return nil, false
	}
	return video, true
}
