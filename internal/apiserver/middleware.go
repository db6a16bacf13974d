package apiserver

import (
	"net/http"
	"runtime/debug"
	"time"
)

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogMiddleware logs method, path, status and duration for every
// request. Probe and scrape endpoints log at debug to keep the serve
// log readable.
func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logf := s.log.Info
		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			logf = s.log.Debug
		}
		logf("%s %s %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// recoverMiddleware turns a handler panic into a 500 instead of tearing
// down the listener.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("Panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
