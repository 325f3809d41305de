/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ledger

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
)

const defaultLookbackBlocks = 90000

// EventSource is the log-reading side of the ledger client.
type EventSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	PledgeCreatedLogs(ctx context.Context, owner common.Address, from, to uint64) ([]*model.PledgeCreatedEvent, error)
}

// EventIndex answers "which pledges does this owner have" from PledgeCreated
// logs, remembering what it has already scanned.
type EventIndex struct {
	source   EventSource
	repo     service.PledgeEventRepository
	lookback uint64
	logger   *log.Logger
}

func NewEventIndex(source EventSource, repo service.PledgeEventRepository, lookback uint64, logger *log.Logger) *EventIndex {
	if lookback == 0 {
		lookback = defaultLookbackBlocks
	}
	if logger == nil {
		logger = log.Default()
	}
	return &EventIndex{source: source, repo: repo, lookback: lookback, logger: logger}
}

// PledgeIDs scans new blocks for the owner and returns every known pledge id
// in ascending order. The first scan starts lookback blocks behind head.
func (x *EventIndex) PledgeIDs(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	head, err := x.source.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	from := uint64(0)
	if head > x.lookback {
		from = head - x.lookback
	}
	cursor, ok, err := x.repo.Cursor(ctx, owner)
	if err != nil {
		return nil, err
	}
	if ok && cursor+1 > from {
		from = cursor + 1
	}

	if from <= head {
		events, err := x.source.PledgeCreatedLogs(ctx, owner, from, head)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if err := x.repo.Add(ctx, ev); err != nil {
				return nil, fmt.Errorf("store pledge event %s: %w", ev.PledgeID, err)
			}
		}
		if err := x.repo.SetCursor(ctx, owner, head); err != nil {
			return nil, err
		}
		if len(events) > 0 {
			x.logger.Printf("indexed %d PledgeCreated event(s) for %s in blocks %d..%d", len(events), owner.Hex(), from, head)
		}
	}

	known, err := x.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]*big.Int, 0, len(known))
	for _, ev := range known {
		ids = append(ids, ev.PledgeID)
	}
	return ids, nil
}
