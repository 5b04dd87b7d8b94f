package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

func requestLogger(r *http.Request, logger *log.Entry) *log.Entry {
	entry := logger.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	if id := middleware.GetReqID(r.Context()); id != "" {
		entry = entry.WithField("request_id", id)
	}
	if actor, ok := ActorFromContext(r.Context()); ok {
		entry = entry.WithField("actor_id", actor)
	}
	return entry
}

// accessLog пишет одну запись logrus на запрос.
func accessLog(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			entry := requestLogger(r, logger).WithFields(log.Fields{
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				entry.Warn("http request")
			default:
				entry.Info("http request")
			}
		})
	}
}
