/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package kv

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
)

const sessionKeyPrefix = "session"

// SessionRepository stores focus sessions in a KVStore, one record per
// (pledge, owner).
type SessionRepository struct {
	store service.KVStore
}

var _ service.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(store service.KVStore) *SessionRepository {
	return &SessionRepository{store: store}
}

// SessionKey returns the composite key for a session. Owners are normalized
// to lowercase hex so case variants of one address share a record.
func SessionKey(pledgeID *big.Int, owner common.Address) string {
	return Key(sessionKeyPrefix, pledgeID.String(), strings.ToLower(owner.Hex()))
}

// Put overwrites any existing record for the same key.
func (r *SessionRepository) Put(ctx context.Context, s *model.Session) error {
	pledgeID, ok := new(big.Int).SetString(s.PledgeID, 10)
	if !ok || !common.IsHexAddress(s.Owner) {
		return domain.ErrInvalidRecord
	}
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, SessionKey(pledgeID, common.HexToAddress(s.Owner)), data)
}

// Find returns nil, nil when no usable session exists. A stored record
// without a start time counts as absent.
func (r *SessionRepository) Find(ctx context.Context, pledgeID *big.Int, owner common.Address) (*model.Session, error) {
	data, err := r.store.Get(ctx, SessionKey(pledgeID, owner))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var s model.Session
	if err := Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.StartTime <= 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, pledgeID *big.Int, owner common.Address) error {
	return r.store.Delete(ctx, SessionKey(pledgeID, owner))
}
