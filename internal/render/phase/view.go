/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package phase

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lockd/attestor/internal/client"
	domainmodel "github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/lifecycle"
)

var actionHints = map[lifecycle.Action]string{
	lifecycle.ActionCreatePledge:    "create a pledge to start a challenge",
	lifecycle.ActionStartRedemption: "call startRedemption to recover the pledge",
	lifecycle.ActionClaim:           "call claimPledge to release the stake",
	lifecycle.ActionWait:            "wait for the cooldown to end",
	lifecycle.ActionStartSession:    "run: lockd session start",
	lifecycle.ActionLockBalance:     "deadline missed: lock the balance",
	lifecycle.ActionKeepFocusing:    "keep focusing",
	lifecycle.ActionCheckIn:         "run: lockd attest",
}

func renderView(snap *client.Snapshot, st lifecycle.Status, s styles) string {
	if snap == nil || snap.Pledge == nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			s.title.Render("LockD"),
			s.empty.Render("No live pledge found."),
			actionLine(st, s),
		)
	}

	p := snap.Pledge
	lines := []string{
		s.title.Render(fmt.Sprintf("LockD pledge #%s", snap.PledgeID)),
		s.header.Render(fmt.Sprintf("status: %s  stake: %s wei  session: %s", p.Status, stake(p.StakedAmount), formatDuration(time.Duration(p.SessionDuration)*time.Second))),
		lipgloss.JoinHorizontal(lipgloss.Top,
			s.detail.Render("progress: "),
			renderProgressBar(int(p.CompletedDays), int(p.TargetDays), 20, s),
			s.detail.Render(fmt.Sprintf(" %d/%d days", p.CompletedDays, p.TargetDays)),
		),
		phaseLine(st, s),
	}
	if st.UntilLate > 0 && p.Status == domainmodel.StatusActive && st.Phase != lifecycle.PhaseChallengeComplete {
		lines = append(lines, s.detail.Render("late in: "+formatDuration(st.UntilLate)))
	}
	lines = append(lines, actionLine(st, s))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func phaseLine(st lifecycle.Status, s styles) string {
	label := st.Phase.String()
	if st.Countdown > 0 {
		label += " " + formatDuration(st.Countdown)
	}
	return s.detail.Render("phase: ") + phaseStyle(st.Phase, s).Render(label)
}

func phaseStyle(p lifecycle.Phase, s styles) lipgloss.Style {
	switch p {
	case lifecycle.PhaseChallengeComplete, lifecycle.PhaseSessionCompleted:
		return s.good
	case lifecycle.PhaseSessionRunning, lifecycle.PhaseCooldown:
		return s.busy
	case lifecycle.PhaseLate, lifecycle.PhaseFrozenBlocked:
		return s.danger
	case lifecycle.PhaseRedeemingAwaitSession, lifecycle.PhaseNoSession:
		return s.warning
	default:
		return s.empty
	}
}

func actionLine(st lifecycle.Status, s styles) string {
	hint, ok := actionHints[st.NextAction]
	if !ok {
		hint = string(st.NextAction)
	}
	return s.action.Render("next: " + hint)
}

func renderProgressBar(done, total, width int, s styles) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = min(done*width/total, width)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

// formatDuration renders whole seconds as HH:MM:SS, with a day prefix past 24h.
func formatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days := total / 86400
	h, m, sec := (total%86400)/3600, (total%3600)/60, total%60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

func stake(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
