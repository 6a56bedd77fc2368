package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// requestIDHeader carries the request id in both directions. A caller may
// supply one to correlate its own logs; otherwise a UUID is issued.
const requestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds caller-supplied ids before they reach the logs.
const maxRequestIDLen = 64

// requestLogger attaches a child logger carrying request_id, method and path
// to the request context, echoes the id in the response, recovers handler
// panics as 500s and logs status and latency on completion.
func requestLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		log := base.With(
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		r = r.WithContext(logging.WithLogger(r.Context(), log))

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panic",
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				)
				if !rw.wrote {
					writeJSON(rw, r, http.StatusInternalServerError, errorResponse{
						Error: "Something went wrong. Please try again.",
						Code:  "internal_error",
					})
				}
			}
			log.Info("request",
				slog.Int("status", rw.status),
				slog.Duration("duration", time.Since(start)),
			)
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter records the status code a handler sent.
type responseWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

// WriteHeader captures the status code before delegating to the underlying writer.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.wrote = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write marks the header as sent; an implicit 200 is already recorded.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
