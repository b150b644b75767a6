package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/tutor"
	"github.com/google/uuid"
)

type Tutor interface {
	Ask(ctx context.Context, userID string, req tutor.AskRequest) (*model.QAEntry, error)
	AskStream(ctx context.Context, userID string, req tutor.AskRequest) (*tutor.AnswerStream, error)
	History(ctx context.Context, userID string, videoID uuid.UUID) ([]*model.QAEntry, error)
}

type QAAPI struct {
	tutor  Tutor
	logger *slog.Logger
}

func NewQAAPI(t Tutor, logger *slog.Logger) *QAAPI {
	return &QAAPI{
		tutor:  t,
		logger: logger,
	}
}

func (q *QAAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	head, tail := ShiftPath(r.URL.Path)
	subHead, _ := ShiftPath(tail)
	switch {
	case head == "ask" && tail == "/" && r.Method == http.MethodPost:
		q.Ask(w, r)
	case head == "ask" && subHead == "stream" && r.Method == http.MethodPost:
		q.AskStream(w, r)
	case head == "history" && subHead != "" && r.Method == http.MethodGet:
		q.History(w, r, subHead)
	default:
		Message(w, http.StatusNotFound, "not found")
	}
}

func decodeAsk(w http.ResponseWriter, r *http.Request) (tutor.AskRequest, bool) {
	var req tutor.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body", err)
		return tutor.AskRequest{}, false
	}
	return req, true
}

func (q *QAAPI) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAsk(w, r)
	if !ok {
		return
	}
	user, _ := UserFromContext(r.Context())
	entry, err := q.tutor.Ask(r.Context(), user.ID, req)
	if err != nil {
		returnErr(q.logger, w, err, slog.String("video_id", req.VideoID.String()))
		return
	}

	JSON(w, http.StatusOK, entry)
}

type streamEvent struct {
	Text string     `json:"text,omitempty"`
	Done bool       `json:"done,omitempty"`
	QAID *uuid.UUID `json:"qa_id,omitempty"`
}

// AskStream answers as server sent events. Each fragment is sent as a text
// event, followed by a done event carrying the id of the stored answer.
func (q *QAAPI) AskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAsk(w, r)
	if !ok {
		return
	}
	user, _ := UserFromContext(r.Context())
	stream, err := q.tutor.AskStream(r.Context(), user.ID, req)
	if err != nil {
		returnErr(q.logger, w, err, slog.String("video_id", req.VideoID.String()))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for fragment := range stream.Fragments {
		if err := writeEvent(w, streamEvent{Text: fragment}); err != nil {
			q.logger.Info("client went away during stream", slog.String("video_id", req.VideoID.String()))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	done := streamEvent{Done: true}
	if entry, err := stream.Saved(); err == nil {
		done.QAID = &entry.ID
	}
	writeEvent(w, done)
	if flusher != nil {
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event streamEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", body)
	return err
}

func (q *QAAPI) History(w http.ResponseWriter, r *http.Request, rawID string) {
	videoID, err := uuid.Parse(rawID)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid video id", err)
		return
	}
	user, _ := UserFromContext(r.Context())
	entries, err := q.tutor.History(r.Context(), user.ID, videoID)
	if err != nil {
		returnErr(q.logger, w, err, slog.String("video_id", rawID))
		return
	}
	if entries == nil {
		entries = []*model.QAEntry{}
	}

	JSON(w, http.StatusOK, entries)
}
