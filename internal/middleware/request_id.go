package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sidrive/sidrive-api/internal/pkg/logger"
)

const requestIDKey contextKey = "request_id"

// RequestID assigns an X-Request-ID and binds a request-scoped logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		r.Header.Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = logger.WithFields(ctx, map[string]string{"request_id": requestID})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id bound by RequestID.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
