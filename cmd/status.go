/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/client"
	"github.com/lockd/attestor/internal/lifecycle"
	"github.com/lockd/attestor/internal/render/phase"
	"github.com/spf13/cobra"
)

type statusOutput struct {
	PledgeID string           `json:"pledgeId,omitempty"`
	Status   lifecycle.Status `json:"status"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	flags := &pledgeFlags{}
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the lifecycle phase of the active pledge",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := attest.ParseOwnerAddress(flags.owner)
			if err != nil {
				return err
			}
			focus, closeFn, err := opts.focus(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := focus.Snapshot(cmd.Context(), owner, flags.pledgeID)
			if err != nil {
				return err
			}
			now := time.Now()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statusOutput{PledgeID: snap.PledgeID, Status: snap.Derive(now)})
			}

			rendered, err := phase.Render(snap, now)
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	flags.register(cmd, false)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the derived status as JSON")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	flags := &pledgeFlags{}
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the lifecycle phase, re-derived every second",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := attest.ParseOwnerAddress(flags.owner)
			if err != nil {
				return err
			}
			focus, closeFn, err := opts.focus(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			source := func(ctx context.Context) (*client.Snapshot, error) {
				return focus.Snapshot(ctx, owner, flags.pledgeID)
			}
			return phase.Watch(cmd.Context(), source, phase.WatchOptions{Tick: time.Second, Poll: poll}, cmd.OutOrStdout())
		},
	}
	flags.register(cmd, false)
	cmd.Flags().DurationVar(&poll, "poll", 15*time.Second, "how often to re-read the ledger")
	return cmd
}
