/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import (
	"errors"
	"fmt"
	"math/big"
)

var ErrCooldownExceedsGrace = errors.New("cooldown is longer than the grace period")

// ProtocolConstants are the ledger-wide parameters. Durations are seconds.
type ProtocolConstants struct {
	Cooldown           uint64   `json:"cooldown"`
	GracePeriod        uint64   `json:"gracePeriod"`
	MinStake           *big.Int `json:"minStake"`
	MinSessionDuration uint64   `json:"minSessionDuration"`
	MaxSessionDuration uint64   `json:"maxSessionDuration"`
}

// Validate checks cooldown <= gracePeriod. When it does not hold, COOLDOWN
// and LATE overlap and only the derivation precedence separates them.
func (c ProtocolConstants) Validate() error {
	if c.Cooldown > c.GracePeriod {
		return fmt.Errorf("%w: %d > %d", ErrCooldownExceedsGrace, c.Cooldown, c.GracePeriod)
	}
	return nil
}
