package infra

import (
	"context"
	"log"
	"net/http"
	"time"
)

const (
	maxHeaderBytes = 64 << 10
	// Uploads of training audio are read at no less than this rate.
	minUploadBytesPerSecond = 256 << 10
)

// HTTPServer wraps http.Server to provide graceful startup and shutdown helpers.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates the API server. Server-level errors (TLS handshakes,
// panics outside chi) go to logger. The read timeout is stretched so an
// upload of MaxUploadBytes fits at the minimum accepted rate.
func NewHTTPServer(cfg *Config, handler http.Handler, logger Logger) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       readTimeout(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		ErrorLog:          log.New(logger.With().Str("component", "http").Logger(), "", 0),
	}

	return &HTTPServer{server: srv}
}

func readTimeout(cfg *Config) time.Duration {
	upload := time.Duration(cfg.MaxUploadBytes/minUploadBytesPerSecond) * time.Second
	if upload > cfg.HTTPReadTimeout {
		return upload
	}
	return cfg.HTTPReadTimeout
}

// Start runs the HTTP server in the current goroutine.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
