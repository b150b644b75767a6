package handler

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"ewintr.nl/tutorai/auth"
)

type Server struct {
	apis        map[string]http.Handler
	identity    auth.IdentityProvider
	corsOrigins []string
	logger      *slog.Logger
}

func NewServer(identity auth.IdentityProvider, corsOrigins []string, logger *slog.Logger) *Server {
	return &Server{
		apis:        map[string]http.Handler{},
		identity:    identity,
		corsOrigins: corsOrigins,
		logger:      logger,
	}
}

func (s *Server) WithAPI(route string, api http.Handler) *Server {
	s.apis[route] = api
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.cors(sw, r)
	sw.Header().Set("Content-Type", "application/json")

	originalPath := r.URL.Path
	head, tail := ShiftPath(r.URL.Path)
	s.serve(sw, r, head, tail)

	s.logger.Info("request served",
		slog.String("method", r.Method),
		slog.String("path", originalPath),
		slog.Int("status", sw.status),
	)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, head, tail string) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	switch head {
	case "":
		Index(w)
		return
	case "health":
		Health(w)
		return
	}

	api, ok := s.apis[head]
	if !ok {
		Error(w, http.StatusNotFound, "Not found", errNotFound(head))
		return
	}

	user, err := s.identity.Authenticate(r.Context(), bearerToken(r.Header.Get("Authorization")))
	if err != nil {
		Error(w, http.StatusUnauthorized, "Not authorized", err)
		return
	}

	r.URL.Path = tail
	api.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
}

func (s *Server) cors(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Add("Vary", "Origin")
			return
		}
	}
}

// ShiftPath splits off the first component of p, which will be cleaned of
// relative components before processing. head will never contain a slash and
// tail will always be a rooted path without trailing slash.
// See https://blog.merovius.de/posts/2017-06-18-how-not-to-use-an-http-router/
func ShiftPath(p string) (string, string) {
	p = path.Clean("/" + p)
	i := strings.Index(p[1:], "/") + 1
	if i <= 0 {
		return p[1:], "/"
	}
	return p[1:i], p[i:]
}

// statusWriter records the status for the request log and keeps the
// underlying writer flushable for streamed responses.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(status int) {
	if sw.wroteHeader {
		return
	}
	sw.status = status
	sw.wroteHeader = true
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type errNotFound string

func (e errNotFound) Error() string {
	return "no handler for " + string(e)
}
