package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer serves the portrait API. It wraps http.Server so main only deals
// with Start and Shutdown; timeouts come from configuration except for the
// header read cap, which stays fixed to bound slow-loris style clients.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the server for the given handler on the configured
// port. Write and idle timeouts must comfortably exceed multipart upload
// times; generation itself never holds a request open.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Addr returns the listen address.
func (s *HTTPServer) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *HTTPServer) Start() error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within the context's deadline. Detached
// generation goroutines are not requests; the caller waits on those separately.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
