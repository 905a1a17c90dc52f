package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HTTPService runs an *http.Server as a lifecycle Service.
type HTTPService struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewHTTPService wraps srv. Stop waits at most shutdownTimeout for in-flight
// requests before closing remaining connections.
//
// Precondition: srv and logger must be non-nil.
func NewHTTPService(srv *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) *HTTPService {
	return &HTTPService{srv: srv, shutdownTimeout: shutdownTimeout, logger: logger}
}

// Listen binds srv.Addr ahead of Start so the bound address is known, for
// example when Addr uses port 0.
func (h *HTTPService) Listen() (net.Addr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		ln, err := net.Listen("tcp", h.srv.Addr)
		if err != nil {
			return nil, err
		}
		h.ln = ln
	}
	return h.ln.Addr(), nil
}

// Start serves until Stop. A clean shutdown returns nil.
func (h *HTTPService) Start() error {
	addr, err := h.Listen()
	if err != nil {
		return err
	}
	h.mu.Lock()
	ln := h.ln
	h.mu.Unlock()

	h.logger.Info("http listening", zap.String("addr", addr.String()))
	if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (h *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("http shutdown", zap.Error(err))
		_ = h.srv.Close()
	}
}
