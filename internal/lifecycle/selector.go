/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
)

// SelectActive picks the pledge to show and act on: the lowest-id REDEEMING
// pledge, otherwise the most recently created one whatever its status.
// Returns nil for an empty slice.
func SelectActive(pledges []*model.Pledge) *model.Pledge {
	sorted := make([]*model.Pledge, 0, len(pledges))
	for _, p := range pledges {
		if p != nil && p.ID != nil {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.Cmp(sorted[j].ID) < 0 })

	for _, p := range sorted {
		if p.Status == model.StatusRedeeming {
			return p
		}
	}
	return sorted[len(sorted)-1]
}

// LoadPledges reads every id from the ledger. Ids the ledger no longer knows
// are skipped; any other read failure aborts the batch.
func LoadPledges(ctx context.Context, reader service.PledgeReader, ids []*big.Int) ([]*model.Pledge, error) {
	out := make([]*model.Pledge, 0, len(ids))
	for _, id := range ids {
		p, err := reader.Pledge(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read pledge %s: %w", id, err)
		}
		out = append(out, p)
	}
	return out, nil
}
