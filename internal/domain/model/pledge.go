/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/domain"
)

// PledgeStatus mirrors the ledger's status enum. The numeric values are the
// on-chain uint8 encoding and are part of the signed check-in message.
type PledgeStatus uint8

const (
	StatusActive PledgeStatus = iota
	StatusFrozen
	StatusRedeeming
	StatusClaimed
	StatusLiquidated
)

// ParsePledgeStatus converts the ledger's uint8 into a PledgeStatus.
func ParsePledgeStatus(v uint8) (PledgeStatus, error) {
	s := PledgeStatus(v)
	switch s {
	case StatusActive, StatusFrozen, StatusRedeeming, StatusClaimed, StatusLiquidated:
		return s, nil
	default:
		return 0, fmt.Errorf("%w: %d", domain.ErrUnknownStatus, v)
	}
}

func (s PledgeStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusFrozen:
		return "FROZEN"
	case StatusRedeeming:
		return "REDEEMING"
	case StatusClaimed:
		return "CLAIMED"
	case StatusLiquidated:
		return "LIQUIDATED"
	default:
		return fmt.Sprintf("PledgeStatus(%d)", uint8(s))
	}
}

func (s PledgeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PledgeStatus) UnmarshalText(text []byte) error {
	for v := StatusActive; v <= StatusLiquidated; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownStatus, text)
}

// Live reports whether the pledge still has a lifecycle to drive.
// CLAIMED and LIQUIDATED are terminal.
func (s PledgeStatus) Live() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusRedeeming:
		return true
	case StatusClaimed, StatusLiquidated:
		return false
	default:
		return false
	}
}

// Pledge is a read-only snapshot of a ledger pledge record.
// Timestamps are unix seconds; LastCheckIn is 0 until the first check-in.
type Pledge struct {
	ID              *big.Int       `json:"pledgeId"`
	Owner           common.Address `json:"owner"`
	StakedAmount    *big.Int       `json:"stakedAmount"`
	StartTime       uint64         `json:"startTime"`
	LastCheckIn     uint64         `json:"lastCheckIn"`
	SessionDuration uint64         `json:"sessionDuration"`
	TargetDays      uint8          `json:"targetDays"`
	CompletedDays   uint8          `json:"completedDays"`
	Status          PledgeStatus   `json:"status"`
}

// TargetReached reports whether every target day has been checked in.
func (p *Pledge) TargetReached() bool {
	return p.CompletedDays >= p.TargetDays
}

// DeadlineBase is the timestamp the grace period runs from: the last
// check-in, or the pledge start when no check-in happened yet.
func (p *Pledge) DeadlineBase() uint64 {
	if p.LastCheckIn == 0 {
		return p.StartTime
	}
	return p.LastCheckIn
}
