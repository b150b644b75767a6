package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"ewintr.nl/tutorai/auth"
	"ewintr.nl/tutorai/fetcher"
	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/ratelimit"
	"ewintr.nl/tutorai/storage"
	"ewintr.nl/tutorai/tutor"
)

func Index(w http.ResponseWriter) {
	Message(w, http.StatusOK, "tutorai index")
}

func Health(w http.ResponseWriter) {
	Message(w, http.StatusOK, "ok")
}

func Message(w http.ResponseWriter, status int, message string, details ...any) {
	w.WriteHeader(status)
	response := struct {
		Message string `json:"message"`
		Details []any  `json:"details,omitempty"`
	}{
		Message: message,
		Details: details,
	}
	body, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		fmt.Fprintf(w, `{"message": %q, "details":%q}`, message, marshalErr.Error())
		return
	}
	w.Write(body)
}

func Error(w http.ResponseWriter, status int, message string, err error, details ...any) {
	w.WriteHeader(status)
	response := struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Details []any  `json:"details,omitempty"`
	}{
		Message: message,
		Error:   err.Error(),
		Details: details,
	}
	body, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		fmt.Fprintf(w, `{"message": %q, "error": %q, "details":%q}`, message, err.Error(), marshalErr.Error())
		return
	}
	w.Write(body)
}

func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not marshal response", err)
		return
	}
	w.WriteHeader(status)
	w.Write(body)
}

// StatusFor maps domain errors to the HTTP status the client sees.
func StatusFor(err error) int {
	switch {
	case fetcher.IsRejected(err),
		errors.Is(err, tutor.ErrInvalidQuestion),
		errors.Is(err, model.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tutor.ErrVideoNotReady):
		return http.StatusConflict
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, tutor.ErrGeneration):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func returnErr(logger *slog.Logger, w http.ResponseWriter, err error, fields ...any) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("server error", append(fields, slog.String("error", err.Error()))...)
		Error(w, status, "server error", err)
		return
	}
	Error(w, status, http.StatusText(status), err)
}
