/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package attest

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("invalid request")
	ErrAuthorization = errors.New("not pledge owner")
	ErrTiming        = errors.New("session not completed yet")
	ErrUpstream      = errors.New("ledger or store unavailable")
	ErrSigning       = errors.New("signing failed")
)

// TimingError rejects an attestation whose focus session has not run for
// the pledge's session duration. It matches ErrTiming.
type TimingError struct {
	RemainingSeconds uint64
	// NoSession is set when the strict policy rejects a request that has no
	// recorded session at all.
	NoSession bool
}

func (e *TimingError) Error() string {
	if e.NoSession {
		return fmt.Sprintf("%v: no focus session recorded, %d seconds required", ErrTiming, e.RemainingSeconds)
	}
	return fmt.Sprintf("%v: %d seconds remaining", ErrTiming, e.RemainingSeconds)
}

func (e *TimingError) Is(target error) bool {
	return target == ErrTiming
}
