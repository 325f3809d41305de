/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
)

// PledgeEventRepository handles PledgeCreated event persistence and the
// per-owner scan cursor.
type PledgeEventRepository struct {
	db *sql.DB
}

var _ service.PledgeEventRepository = (*PledgeEventRepository)(nil)

func NewPledgeEventRepository(db *sql.DB) *PledgeEventRepository {
	return &PledgeEventRepository{db: db}
}

func ownerKey(owner common.Address) string {
	return strings.ToLower(owner.Hex())
}

// Add stores an event. Re-adding a known pledge id is a no-op.
func (r *PledgeEventRepository) Add(ctx context.Context, ev *model.PledgeCreatedEvent) error {
	if ev.PledgeID == nil {
		return domain.ErrInvalidRecord
	}
	amount := "0"
	if ev.Amount != nil {
		amount = ev.Amount.String()
	}
	const q = `
		INSERT INTO pledge_events (pledge_id, owner, amount, block_number)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pledge_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, q, ev.PledgeID.String(), ownerKey(ev.Owner), amount, ev.BlockNumber); err != nil {
		return fmt.Errorf("insert pledge event: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's events ordered by ascending pledge id.
func (r *PledgeEventRepository) ListByOwner(ctx context.Context, owner common.Address) ([]*model.PledgeCreatedEvent, error) {
	const q = `
		SELECT pledge_id, owner, amount, block_number
		FROM pledge_events
		WHERE owner = ?
	`
	rows, err := r.db.QueryContext(ctx, q, ownerKey(owner))
	if err != nil {
		return nil, fmt.Errorf("query pledge events: %w", err)
	}
	defer rows.Close()

	var events []*model.PledgeCreatedEvent
	for rows.Next() {
		var (
			id, ownerHex, amount string
			block                uint64
		)
		if err := rows.Scan(&id, &ownerHex, &amount, &block); err != nil {
			return nil, fmt.Errorf("scan pledge event: %w", err)
		}
		pledgeID, ok := new(big.Int).SetString(id, 10)
		if !ok {
			return nil, fmt.Errorf("%w: pledge id %q", domain.ErrInvalidRecord, id)
		}
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("%w: amount %q", domain.ErrInvalidRecord, amount)
		}
		events = append(events, &model.PledgeCreatedEvent{
			PledgeID:    pledgeID,
			Owner:       common.HexToAddress(ownerHex),
			Amount:      value,
			BlockNumber: block,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// pledge ids are uint256 stored as text, order numerically here
	sort.Slice(events, func(i, j int) bool {
		return events[i].PledgeID.Cmp(events[j].PledgeID) < 0
	})
	return events, nil
}

// Cursor returns the last scanned block for the owner. ok is false when the
// owner was never scanned.
func (r *PledgeEventRepository) Cursor(ctx context.Context, owner common.Address) (uint64, bool, error) {
	const q = `
		SELECT last_block
		FROM index_cursors
		WHERE owner = ?
		LIMIT 1
	`
	var block uint64
	if err := r.db.QueryRowContext(ctx, q, ownerKey(owner)).Scan(&block); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("scan index cursor: %w", err)
	}
	return block, true, nil
}

func (r *PledgeEventRepository) SetCursor(ctx context.Context, owner common.Address, block uint64) error {
	const q = `
		INSERT INTO index_cursors (owner, last_block, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner) DO UPDATE SET last_block = excluded.last_block, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, q, ownerKey(owner), block); err != nil {
		return fmt.Errorf("update index cursor: %w", err)
	}
	return nil
}
