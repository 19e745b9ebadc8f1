package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"vocalizz/internal/infra"
)

type contextKey string

const maxRequestIDLen = 64

// RequestID accepts a caller supplied X-Request-ID when it is short and made
// of safe characters, otherwise it generates one. The id is echoed back and
// stored on the context for the access log and job logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(infra.ContextWithRequestID(r.Context(), rid)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func RequestIDFromContext(ctx context.Context) string {
	return infra.RequestIDFrom(ctx)
}
