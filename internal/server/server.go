// Package server runs http.Handlers with timeouts, optional TLS and
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/tsukuyomi/internal/config"
)

// Server wraps an http.Server.
type Server struct {
	http            *http.Server
	certFile        string
	keyFile         string
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

type Option func(*Server)

// WithTLS serves HTTPS with the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take to finish.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithTimeouts sets the read, write, read-header and idle timeouts.
func WithTimeouts(read, write, readHeader, idle time.Duration) Option {
	return func(s *Server) {
		s.http.ReadTimeout = read
		s.http.WriteTimeout = write
		s.http.ReadHeaderTimeout = readHeader
		s.http.IdleTimeout = idle
	}
}

// New creates a server for h listening on addr.
func New(addr string, h http.Handler, opts ...Option) *Server {
	s := &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadTimeout:       10 * time.Second, // Total time to read request
			WriteTimeout:      30 * time.Second, // Total time to write response
			ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
			MaxHeaderBytes:    1 << 20,          // 1 MB max header size
		},
		shutdownTimeout: 10 * time.Second,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig creates a server using the server section of the configuration.
func FromConfig(cfg config.ServerConfig, h http.Handler, logger zerolog.Logger) *Server {
	opts := []Option{
		WithLogger(logger),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.ReadHeaderTimeout, cfg.IdleTimeout),
	}
	if cfg.TLSCertFile != "" {
		opts = append(opts, WithTLS(cfg.TLSCertFile, cfg.TLSKeyFile))
	}
	return New(cfg.Addr(), h, opts...)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Bool("tls", s.certFile != "").Msg("listening")
		var err error
		if s.certFile != "" {
			err = s.http.ServeTLS(ln, s.certFile, s.keyFile)
		} else {
			err = s.http.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("http server error: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// Run serves every server until ctx is cancelled or one of them fails, in
// which case the others are shut down too.
func Run(ctx context.Context, servers ...*Server) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			return s.ListenAndServe(ctx)
		})
	}
	return g.Wait()
}
