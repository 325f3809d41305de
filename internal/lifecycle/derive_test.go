/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package lifecycle

import (
	"math/big"
	"testing"
	"time"

	"github.com/lockd/attestor/internal/domain/model"
	"github.com/stretchr/testify/assert"
)

const t0 = 1_700_000_000

var constants = model.ProtocolConstants{
	Cooldown:           86400,
	GracePeriod:        129600,
	MinStake:           big.NewInt(1e15),
	MinSessionDuration: 900,
	MaxSessionDuration: 14400,
}

func pledge(status model.PledgeStatus, lastCheckIn uint64, completed uint8) *model.Pledge {
	return &model.Pledge{
		ID:              big.NewInt(1),
		StakedAmount:    big.NewInt(1e16),
		StartTime:       t0 - 3*86400,
		LastCheckIn:     lastCheckIn,
		SessionDuration: 3600,
		TargetDays:      7,
		CompletedDays:   completed,
		Status:          status,
	}
}

func at(offset int64) time.Time {
	return time.Unix(t0+offset, 0)
}

func session(start int64) *model.Session {
	return &model.Session{PledgeID: "1", StartTime: start}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		phase  Phase
		action Action
		count  time.Duration
		freeze bool
	}{
		{
			name:   "no pledge",
			in:     Input{Now: at(0)},
			phase:  PhaseNoPledge,
			action: ActionCreatePledge,
		},
		{
			name:   "claimed is terminal",
			in:     Input{Pledge: pledge(model.StatusClaimed, t0, 7), Now: at(0)},
			phase:  PhaseNoPledge,
			action: ActionCreatePledge,
		},
		{
			name:   "liquidated is terminal",
			in:     Input{Pledge: pledge(model.StatusLiquidated, t0, 3), Now: at(0)},
			phase:  PhaseNoPledge,
			action: ActionCreatePledge,
		},
		{
			name:   "frozen before target",
			in:     Input{Pledge: pledge(model.StatusFrozen, t0, 3), Session: session(t0), Now: at(10)},
			phase:  PhaseFrozenBlocked,
			action: ActionStartRedemption,
		},
		{
			name:   "frozen with target reached redeems",
			in:     Input{Pledge: pledge(model.StatusFrozen, t0, 7), Now: at(10)},
			phase:  PhaseChallengeComplete,
			action: ActionStartRedemption,
		},
		{
			name:   "complete overrides cooldown",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 7), Now: at(100)},
			phase:  PhaseChallengeComplete,
			action: ActionClaim,
		},
		{
			name:   "complete overrides lateness",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 9), Now: at(500000)},
			phase:  PhaseChallengeComplete,
			action: ActionClaim,
		},
		{
			name:   "cooldown",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Now: at(100)},
			phase:  PhaseCooldown,
			action: ActionWait,
			count:  (86400 - 100) * time.Second,
		},
		{
			name:   "cooldown ends at the boundary",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Now: at(86400)},
			phase:  PhaseNoSession,
			action: ActionStartSession,
		},
		{
			name:   "redeeming needs a session",
			in:     Input{Pledge: pledge(model.StatusRedeeming, t0-200000, 3), Now: at(0)},
			phase:  PhaseRedeemingAwaitSession,
			action: ActionStartSession,
		},
		{
			name:   "redeeming is never late",
			in:     Input{Pledge: pledge(model.StatusRedeeming, t0-200000, 3), Session: session(t0 - 60), Now: at(0)},
			phase:  PhaseSessionRunning,
			action: ActionKeepFocusing,
			count:  (3600 - 60) * time.Second,
		},
		{
			name:   "neither cooldown nor late",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Now: at(90000)},
			phase:  PhaseNoSession,
			action: ActionStartSession,
		},
		{
			name:   "late",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Now: at(130000)},
			phase:  PhaseLate,
			action: ActionLockBalance,
			freeze: true,
		},
		{
			name:   "late before first check-in runs from start",
			in:     Input{Pledge: pledge(model.StatusActive, 0, 0), Now: at(0)},
			phase:  PhaseLate,
			action: ActionLockBalance,
			freeze: true,
		},
		{
			name:   "fresh pledge without check-in is not in cooldown",
			in:     Input{Pledge: &model.Pledge{ID: big.NewInt(1), StartTime: t0, SessionDuration: 900, TargetDays: 3}, Now: at(5)},
			phase:  PhaseNoSession,
			action: ActionStartSession,
		},
		{
			name:   "running",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Session: session(t0 + 90000), Now: at(90000 + 3599)},
			phase:  PhaseSessionRunning,
			action: ActionKeepFocusing,
			count:  time.Second,
		},
		{
			name:   "completed",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Session: session(t0 + 90000), Now: at(90000 + 3600)},
			phase:  PhaseSessionCompleted,
			action: ActionCheckIn,
		},
		{
			name:   "completed long after the boundary",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Session: session(t0 + 90000), Now: at(90000 + 30000)},
			phase:  PhaseSessionCompleted,
			action: ActionCheckIn,
		},
		{
			name:   "late masks a completed session",
			in:     Input{Pledge: pledge(model.StatusActive, t0, 3), Session: session(t0 + 120000), Now: at(130000)},
			phase:  PhaseLate,
			action: ActionLockBalance,
			freeze: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Constants = constants
			got := Derive(tc.in)
			assert.Equal(t, tc.phase, got.Phase, got.Phase.String())
			assert.Equal(t, tc.action, got.NextAction)
			assert.Equal(t, tc.count, got.Countdown)
			assert.Equal(t, tc.freeze, got.NeedsFreeze)
		})
	}
}

func TestDerive_CooldownAndLateAreExclusive(t *testing.T) {
	// cooldown longer than grace: the precedence keeps the phase COOLDOWN
	c := constants
	c.Cooldown = 200000
	p := pledge(model.StatusActive, t0, 3)

	for offset := int64(0); offset < 200000; offset += 997 {
		got := Derive(Input{Pledge: p, Constants: c, Now: at(offset)})
		assert.Equal(t, PhaseCooldown, got.Phase, "offset %d", offset)
		assert.False(t, got.NeedsFreeze)
	}
}

func TestDerive_UntilLate(t *testing.T) {
	p := pledge(model.StatusActive, t0, 3)

	got := Derive(Input{Pledge: p, Constants: constants, Now: at(100000)})
	assert.Equal(t, 29600*time.Second, got.UntilLate)

	got = Derive(Input{Pledge: p, Constants: constants, Now: at(140000)})
	assert.Zero(t, got.UntilLate)
}

func TestDerive_Idempotent(t *testing.T) {
	in := Input{Pledge: pledge(model.StatusActive, t0, 3), Constants: constants, Session: session(t0 + 90000), Now: at(91000)}
	assert.Equal(t, Derive(in), Derive(in))
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "REDEEMING_AWAIT_SESSION", PhaseRedeemingAwaitSession.String())
	assert.Equal(t, "Phase(42)", Phase(42).String())
	text, err := PhaseLate.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "LATE", string(text))
}
