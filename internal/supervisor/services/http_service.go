// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under supervision.
//
// The first Serve call uses the listener handed to the constructor, so a
// port that cannot be bound fails startup instead of a supervised restart
// loop. Later restarts re-listen on the same address.
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	name            string

	mu       sync.Mutex
	listener net.Listener
}

// NewHTTPServerService wraps server. listener may be nil, in which case
// the service listens on its own; addr is then taken from listener or must
// be set through WithAddr.
func NewHTTPServerService(server HTTPServer, listener net.Listener, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	svc := &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
		listener:        listener,
	}
	if listener != nil {
		svc.addr = listener.Addr().String()
	}
	return svc
}

// WithAddr sets the address used when no pre-bound listener is available.
func (h *HTTPServerService) WithAddr(addr string) *HTTPServerService {
	h.addr = addr
	return h
}

func (h *HTTPServerService) takeListener() (net.Listener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l := h.listener; l != nil {
		h.listener = nil
		return l, nil
	}
	l, err := net.Listen("tcp", h.addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", h.addr, err)
	}
	return l, nil
}

// Serve implements suture.Service. It returns ctx.Err() after a graceful
// shutdown and an error if the server stops on its own.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	l, err := h.takeListener()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return errors.New("http server stopped unexpectedly")

	case <-ctx.Done():
		// ctx is already canceled; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String names the service in supervisor logs.
func (h *HTTPServerService) String() string {
	return h.name
}
