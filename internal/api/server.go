// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultServerConfig returns production-ready listener defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8407",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wraps http.Server as a supervised service. It translates the
// blocking ListenAndServe pattern into suture's context-aware Serve:
// the listener runs in a goroutine and context cancellation triggers a
// graceful Shutdown bounded by ShutdownTimeout.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// NewServer creates the supervised HTTP server for the given routing tree.
func NewServer(cfg ServerConfig, routes http.Handler) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      routes,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Serve implements suture.Service. It returns nil only after a graceful
// shutdown; a listener failure is returned so the supervisor restarts us.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already canceled, so shutdown gets
		// its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// String implements fmt.Stringer for supervisor logging.
func (s *Server) String() string {
	return "http-server"
}
