/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/kentakayama/cryptex-over-http/internal/authority"
	"github.com/kentakayama/cryptex-over-http/internal/config"
	"github.com/kentakayama/cryptex-over-http/internal/ledger"
	"github.com/kentakayama/cryptex-over-http/internal/metrics"
	"github.com/kentakayama/cryptex-over-http/resources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server wires the HTTP listener, the development signing authority and its
// ticket ledger.
type Server struct {
	cfg       config.AuthorityConfig
	authority *authority.Authority
	ledger    *ledger.Ledger
	handler   *handler
	http      *http.Server
	logger    *logrus.Logger
}

// New constructs a Server using the provided configuration.
func New(ctx context.Context, cfg config.AuthorityConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	keyBytes := resources.AuthorityCoseKeyBytes
	if cfg.KeyPath != "" {
		b, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read authority key: %w", err)
		}
		keyBytes = b
	} else {
		logger.Warn("using the embedded development signing key")
	}

	var l *ledger.Ledger
	if cfg.DBPath != "" {
		var err error
		if l, err = ledger.Open(ctx, cfg.DBPath, logger); err != nil {
			return nil, err
		}
	}

	a, err := authority.New(keyBytes, l, logger)
	if err != nil {
		closeLedger(l)
		return nil, err
	}
	if err := a.Init(ctx); err != nil {
		closeLedger(l)
		return nil, err
	}

	var metricsHandler http.Handler
	metricsPath := cfg.MetricsPath
	if metricsPath != "" {
		reg := prometheus.NewRegistry()
		metrics.RegisterAuthorityMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	h := newHandler(a, metricsHandler, metricsPath, logger)

	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultAuthorityAddr
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:       cfg,
		authority: a,
		ledger:    l,
		handler:   h,
		http:      httpSrv,
		logger:    logger,
	}, nil
}

// Handler exposes the request handling stack, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Authority returns the ticket issuer behind the server.
func (s *Server) Authority() *authority.Authority {
	return s.authority
}

// Ledger returns the ticket ledger, nil when none is configured.
func (s *Server) Ledger() *ledger.Ledger {
	return s.ledger
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.WithField("addr", ln.Addr().String()).Info("development signing authority listening")

	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully takes down the HTTP server and closes the ledger.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	closeLedger(s.ledger)
	return err
}

func closeLedger(l *ledger.Ledger) {
	if l != nil {
		l.Close()
	}
}
