package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server is an HTTP server plus the resources that live as long as it does.
type Server struct {
	name    string
	server  *http.Server
	closers []io.Closer
}

func newServer(name, port string, h http.Handler, closers ...io.Closer) *Server {
	return &Server{
		name: name,
		server: &http.Server{
			Addr:              ":" + port,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		closers: closers,
	}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("starting server", "service", s.name, "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown drains in-flight requests, then releases the server's resources
// in reverse order of registration.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i].Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
