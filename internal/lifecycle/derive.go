/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package lifecycle

import (
	"time"

	"github.com/lockd/attestor/internal/domain/model"
)

// Input is everything a derivation looks at. Session is the owner's local
// session for Pledge, nil when none is running.
type Input struct {
	Pledge    *model.Pledge
	Constants model.ProtocolConstants
	Session   *model.Session
	Now       time.Time
}

// Status is the derived view of one pledge at one instant.
type Status struct {
	Phase       Phase         `json:"phase"`
	Countdown   time.Duration `json:"countdown"`
	NeedsFreeze bool          `json:"needsFreeze"`
	NextAction  Action        `json:"nextAction"`
	// UntilLate is the time left before the grace deadline, 0 once passed.
	UntilLate time.Duration `json:"untilLate"`
	// Elapsed is how long the local session has been running.
	Elapsed time.Duration `json:"elapsed"`
}

// Derive maps a snapshot to exactly one phase. The rules are evaluated in
// order and the first match wins, so cooldown masks lateness and a reached
// target masks both. Derive has no side effects and is meant to be re-run on
// every tick and every fresh ledger read.
func Derive(in Input) Status {
	p := in.Pledge
	if p == nil || !p.Status.Live() {
		return Status{Phase: PhaseNoPledge, NextAction: ActionCreatePledge}
	}

	now := in.Now.Unix()
	st := Status{UntilLate: remaining(lateDeadline(p, in.Constants), now)}
	if in.Session != nil && in.Session.StartTime > 0 {
		st.Elapsed = seconds(max(now-in.Session.StartTime, 0))
	}

	switch {
	case p.Status == model.StatusFrozen && !p.TargetReached():
		st.Phase = PhaseFrozenBlocked
		st.NextAction = ActionStartRedemption

	case p.TargetReached():
		st.Phase = PhaseChallengeComplete
		if p.Status == model.StatusFrozen {
			st.NextAction = ActionStartRedemption
		} else {
			st.NextAction = ActionClaim
		}

	case p.LastCheckIn > 0 && now < int64(p.LastCheckIn+in.Constants.Cooldown):
		st.Phase = PhaseCooldown
		st.Countdown = seconds(int64(p.LastCheckIn+in.Constants.Cooldown) - now)
		st.NextAction = ActionWait

	case p.Status == model.StatusRedeeming && !sessionRunning(in.Session):
		st.Phase = PhaseRedeemingAwaitSession
		st.NextAction = ActionStartSession

	case p.Status != model.StatusRedeeming && now > lateDeadline(p, in.Constants):
		st.Phase = PhaseLate
		st.NeedsFreeze = p.Status == model.StatusActive
		if st.NeedsFreeze {
			st.NextAction = ActionLockBalance
		} else {
			st.NextAction = ActionWait
		}

	case !sessionRunning(in.Session):
		st.Phase = PhaseNoSession
		st.NextAction = ActionStartSession

	case st.Elapsed < seconds(int64(p.SessionDuration)):
		st.Phase = PhaseSessionRunning
		st.Countdown = seconds(int64(p.SessionDuration)) - st.Elapsed
		st.NextAction = ActionKeepFocusing

	default:
		st.Phase = PhaseSessionCompleted
		st.NextAction = ActionCheckIn
	}
	return st
}

// lateDeadline runs from the last check-in, or from the pledge start before
// the first one.
func lateDeadline(p *model.Pledge, c model.ProtocolConstants) int64 {
	return int64(p.DeadlineBase() + c.GracePeriod)
}

func sessionRunning(s *model.Session) bool {
	return s != nil && s.StartTime > 0
}

func remaining(deadline, now int64) time.Duration {
	if now >= deadline {
		return 0
	}
	return seconds(deadline - now)
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}
