/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
	"github.com/lockd/attestor/internal/lifecycle"
)

// Focus is the owner-side workflow: it mirrors session starts locally so the
// phase can be derived without asking the server every second.
type Focus struct {
	api    *APIClient
	local  service.SessionRepository
	now    func() time.Time
	logger *log.Logger
}

// Snapshot is everything needed to derive a phase until the next poll.
type Snapshot struct {
	PledgeID  string
	Pledge    *model.Pledge
	Constants model.ProtocolConstants
	Session   *model.Session
}

// Derive recomputes the phase at now from the snapshot.
func (s *Snapshot) Derive(now time.Time) lifecycle.Status {
	return lifecycle.Derive(lifecycle.Input{
		Pledge:    s.Pledge,
		Constants: s.Constants,
		Session:   s.Session,
		Now:       now,
	})
}

func NewFocus(api *APIClient, local service.SessionRepository, now func() time.Time, logger *log.Logger) *Focus {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Focus{api: api, local: local, now: now, logger: logger}
}

// StartSession starts the server-side timer and keeps a local copy of the
// server's start time.
func (f *Focus) StartSession(ctx context.Context, req attest.Request) (*model.Session, error) {
	id, err := attest.ParsePledgeID(req.PledgeID)
	if err != nil {
		return nil, err
	}
	owner, err := attest.ParseOwnerAddress(req.OwnerAddress)
	if err != nil {
		return nil, err
	}

	startTime, err := f.api.StartSession(ctx, req)
	if err != nil {
		return nil, err
	}
	session := &model.Session{
		PledgeID:  id.String(),
		Owner:     strings.ToLower(owner.Hex()),
		StartTime: startTime,
		CreatedAt: f.now().Unix(),
	}
	if err := f.local.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("save local session: %w", err)
	}
	return session, nil
}

// CheckIn requests an attestation and drops the local session once the
// server has signed.
func (f *Focus) CheckIn(ctx context.Context, req attest.Request) (*SignedCheckIn, error) {
	signed, err := f.api.Attest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := f.Discard(ctx, req); err != nil {
		f.logger.Printf("attestation received but local session was not cleared: %v", err)
	}
	return signed, nil
}

// Discard forgets the local session. The server record is left alone.
func (f *Focus) Discard(ctx context.Context, req attest.Request) error {
	id, err := attest.ParsePledgeID(req.PledgeID)
	if err != nil {
		return err
	}
	owner, err := attest.ParseOwnerAddress(req.OwnerAddress)
	if err != nil {
		return err
	}
	return f.local.Delete(ctx, id, owner)
}

// Snapshot reads the pledge through the server. With an empty pledgeID the
// owner's active pledge is selected.
func (f *Focus) Snapshot(ctx context.Context, owner common.Address, pledgeID string) (*Snapshot, error) {
	if pledgeID == "" {
		list, err := f.api.UserPledges(ctx, owner)
		if err != nil {
			return nil, err
		}
		if list.ActivePledgeID == nil {
			return &Snapshot{}, nil
		}
		pledgeID = *list.ActivePledgeID
	}
	id, err := attest.ParsePledgeID(pledgeID)
	if err != nil {
		return nil, err
	}

	view, err := f.api.PledgeStatus(ctx, id.String())
	if errors.Is(err, domain.ErrNotFound) {
		return &Snapshot{PledgeID: id.String()}, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{PledgeID: id.String(), Pledge: view.Pledge, Constants: view.Constants}
	if view.Pledge != nil && view.Pledge.Owner == owner {
		snap.Session, err = f.local.Find(ctx, id, owner)
		if err != nil {
			f.logger.Printf("local session for pledge %s unreadable: %v", id, err)
		}
	}
	return snap, nil
}
