package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx/errors"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/logger"
)

// statusWriter captures the status code for the request log line.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// withRequestID assigns a request id, echoes it in X-Request-ID and injects a
// request-scoped logger into the context.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)

		l := logger.L().With(
			logger.RequestID(rid),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), l)))
	})
}

// withLogging emits one line per request with status and duration.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		logger.From(r.Context()).Info("request",
			logger.Status(sw.status),
			logger.Duration(time.Since(start)),
		)
	})
}

// withRecover converts panics into a logged 500.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.From(r.Context()).Error("panic recovered",
					logger.String("panic", toString(rec)),
				)
				errors.WriteError(w, errors.ErrInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "unknown panic"
}
