/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/domain/model"
)

// KVStore is a byte-oriented key-value store. Get returns domain.ErrNotFound
// when the key is absent.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SessionRepository defines the interface for focus session persistence.
type SessionRepository interface {
	Put(ctx context.Context, s *model.Session) error
	Find(ctx context.Context, pledgeID *big.Int, owner common.Address) (*model.Session, error)
	Delete(ctx context.Context, pledgeID *big.Int, owner common.Address) error
}

// PledgeEventRepository defines the interface for the PledgeCreated event index.
type PledgeEventRepository interface {
	Add(ctx context.Context, ev *model.PledgeCreatedEvent) error
	ListByOwner(ctx context.Context, owner common.Address) ([]*model.PledgeCreatedEvent, error)
	Cursor(ctx context.Context, owner common.Address) (uint64, bool, error)
	SetCursor(ctx context.Context, owner common.Address, block uint64) error
}

// PledgeReader reads pledge snapshots from the ledger. A pledge that does not
// exist yields domain.ErrNotFound.
type PledgeReader interface {
	Pledge(ctx context.Context, id *big.Int) (*model.Pledge, error)
}

// Ledger is the read surface of the ledger contract this core consumes.
type Ledger interface {
	PledgeReader
	Constants(ctx context.Context) (model.ProtocolConstants, error)
	SignerWallet(ctx context.Context) (common.Address, error)
}
