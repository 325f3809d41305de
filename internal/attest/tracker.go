/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package attest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
)

// SessionTracker records when a focus session started. There is no end
// operation: the signer only reads the start time and elapsed time only grows.
type SessionTracker struct {
	sessions service.SessionRepository
	now      func() time.Time
	logger   *log.Logger
}

func NewSessionTracker(sessions service.SessionRepository, now func() time.Time, logger *log.Logger) *SessionTracker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionTracker{sessions: sessions, now: now, logger: logger}
}

// Start stores startTime = now for the (pledge, owner) key, replacing any
// earlier session.
func (t *SessionTracker) Start(ctx context.Context, req Request) (*model.Session, error) {
	pledgeID, owner, err := req.parse()
	if err != nil {
		return nil, err
	}

	now := t.now().Unix()
	session := &model.Session{
		PledgeID:  pledgeID.String(),
		Owner:     strings.ToLower(owner.Hex()),
		StartTime: now,
		CreatedAt: now,
	}
	if err := t.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: store session: %v", ErrUpstream, err)
	}

	t.logger.Printf("session started: pledge=%s owner=%s startTime=%d", session.PledgeID, session.Owner, session.StartTime)
	return session, nil
}
