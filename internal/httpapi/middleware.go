package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// logRequests logs one line per request. Health checks log at debug.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		args := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			s.logger.Debug("request", args...)
			return
		}
		s.logger.Info("request", args...)
	})
}

// corsHandler allows cross-origin GET and POST from the listed origins and
// answers preflight requests. Requests from other origins pass through
// without CORS headers, leaving enforcement to the browser.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed = append(allowed, o)
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Mosaic-Columns", "X-Mosaic-Rows", "X-Mosaic-Tile-Size", "X-Mosaic-Cache"},
		MaxAge:         600,
	})
}
