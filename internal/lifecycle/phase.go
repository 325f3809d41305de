/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package lifecycle

import "fmt"

// Phase is the lifecycle phase of the active pledge as seen by its owner.
type Phase int

const (
	PhaseNoPledge Phase = iota
	PhaseFrozenBlocked
	PhaseChallengeComplete
	PhaseCooldown
	PhaseRedeemingAwaitSession
	PhaseLate
	PhaseNoSession
	PhaseSessionRunning
	PhaseSessionCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseNoPledge:
		return "NO_PLEDGE"
	case PhaseFrozenBlocked:
		return "FROZEN_BLOCKED"
	case PhaseChallengeComplete:
		return "CHALLENGE_COMPLETE"
	case PhaseCooldown:
		return "COOLDOWN"
	case PhaseRedeemingAwaitSession:
		return "REDEEMING_AWAIT_SESSION"
	case PhaseLate:
		return "LATE"
	case PhaseNoSession:
		return "NO_SESSION"
	case PhaseSessionRunning:
		return "SESSION_RUNNING"
	case PhaseSessionCompleted:
		return "SESSION_COMPLETED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Action is the one thing the owner can usefully do next.
type Action string

const (
	ActionCreatePledge    Action = "create-pledge"
	ActionStartRedemption Action = "start-redemption"
	ActionClaim           Action = "claim"
	ActionWait            Action = "wait"
	ActionStartSession    Action = "start-session"
	ActionLockBalance     Action = "lock-balance"
	ActionKeepFocusing    Action = "keep-focusing"
	ActionCheckIn         Action = "check-in"
)
