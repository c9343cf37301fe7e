package server

import (
	"net/http"
	"runtime/debug"
	"time"
)

// withMiddleware wraps next (already otelhttp-instrumented) with panic
// recovery and request logging, narrowed to what this service actually
// needs - no generic CORS/rate-limit middleware, since rate limiting here
// is scoped to bulk/CIDR only and applied inside those two handlers per
// spec.md §4.5.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return s.recoverMiddleware(s.loggingMiddleware(next))
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("http handler panicked", map[string]interface{}{
					"panic": rec,
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				})
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
