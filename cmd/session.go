/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"fmt"
	"time"

	"github.com/lockd/attestor/internal/attest"
	"github.com/spf13/cobra"
)

type pledgeFlags struct {
	pledgeID string
	owner    string
}

func (f *pledgeFlags) register(cmd *cobra.Command, pledgeRequired bool) {
	cmd.Flags().StringVar(&f.pledgeID, "pledge", "", "pledge id")
	cmd.Flags().StringVar(&f.owner, "owner", "", "owner address")
	_ = cmd.MarkFlagRequired("owner")
	if pledgeRequired {
		_ = cmd.MarkFlagRequired("pledge")
	}
}

func (f *pledgeFlags) request() attest.Request {
	return attest.Request{PledgeID: f.pledgeID, OwnerAddress: f.owner}
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start or abandon a focus session",
	}
	cmd.AddCommand(newSessionStartCmd(opts), newSessionEndCmd(opts))
	return cmd
}

func newSessionStartCmd(opts *rootOptions) *cobra.Command {
	flags := &pledgeFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the focus timer for a pledge",
		RunE: func(cmd *cobra.Command, _ []string) error {
			focus, closeFn, err := opts.focus(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			session, err := focus.StartSession(cmd.Context(), flags.request())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "session started for pledge %s at %s\n",
				session.PledgeID, time.Unix(session.StartTime, 0).UTC().Format(time.RFC3339))
			return err
		},
	}
	flags.register(cmd, true)
	return cmd
}

// newSessionEndCmd forgets the local session. The server keeps its record,
// which is harmless because elapsed time only grows.
func newSessionEndCmd(opts *rootOptions) *cobra.Command {
	flags := &pledgeFlags{}
	cmd := &cobra.Command{
		Use:   "end",
		Short: "Abandon the local focus session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			focus, closeFn, err := opts.focus(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := focus.Discard(cmd.Context(), flags.request()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "local session for pledge %s discarded\n", flags.pledgeID)
			return err
		},
	}
	flags.register(cmd, true)
	return cmd
}
