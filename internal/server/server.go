/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"errors"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
)

// Attestor signs check-in attestations.
type Attestor interface {
	Attest(ctx context.Context, req attest.Request) (*attest.Attestation, error)
}

// SessionStarter records focus session starts.
type SessionStarter interface {
	Start(ctx context.Context, req attest.Request) (*model.Session, error)
}

// PledgeIndex lists the pledge ids created by an owner.
type PledgeIndex interface {
	PledgeIDs(ctx context.Context, owner common.Address) ([]*big.Int, error)
}

// Services are the collaborators the handler dispatches to.
type Services struct {
	Attestor Attestor
	Sessions SessionStarter
	Ledger   service.Ledger
	Index    PledgeIndex
	Now      func() time.Time
}

// Server wires the HTTP listener and request handling stack.
type Server struct {
	cfg     config.AttestorConfig
	handler *handler
	http    *http.Server
	logger  *log.Logger
}

// New constructs a Server using the provided configuration.
func New(cfg config.AttestorConfig, svc Services) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	h, err := newHandler(svc, logger)
	if err != nil {
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:     cfg,
		handler: h,
		http:    httpSrv,
		logger:  logger,
	}, nil
}

// Handler exposes the routing stack, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("Run LockD attestor on %s (session policy %s).", s.http.Addr, s.cfg.SessionPolicy)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully takes down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
