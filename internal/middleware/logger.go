package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// accessInfo is filled in by handlers further down the chain so the access
// line can name the account even though auth runs after the logger.
type accessInfo struct {
	accountID string
}

const accessInfoKey contextKey = "access_info"

func noteAccount(ctx context.Context, accountID string) {
	if info, ok := ctx.Value(accessInfoKey).(*accessInfo); ok {
		info.accountID = accountID
	}
}

// Logger writes one structured line per request. Server errors log at error
// level, client errors at warn.
func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &accessInfo{}
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), accessInfoKey, info)))

			ev := l.Info()
			switch {
			case rw.status >= 500:
				ev = l.Error()
			case rw.status >= 400:
				ev = l.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Int("bytes", rw.bytes).
				Dur("took", time.Since(start)).
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("account_id", info.accountID).
				Str("ip", ClientIP(r)).
				Msg("http request")
		})
	}
}
