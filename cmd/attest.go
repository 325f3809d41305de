/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/infra/ledger"
	"github.com/spf13/cobra"
)

func newAttestCmd(opts *rootOptions) *cobra.Command {
	flags := &pledgeFlags{}
	var withCalldata bool
	cmd := &cobra.Command{
		Use:   "attest",
		Short: "Request a check-in signature for a completed session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			focus, closeFn, err := opts.focus(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			signed, err := focus.CheckIn(cmd.Context(), flags.request())
			var timing *attest.TimingError
			if errors.As(err, &timing) {
				return fmt.Errorf("session not finished: %d seconds remaining", timing.RemainingSeconds)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "signature:    %s\n", hexutil.Encode(signed.Signature))
			fmt.Fprintf(out, "message hash: %s\n", signed.MessageHash.Hex())
			if withCalldata {
				id, err := attest.ParsePledgeID(flags.pledgeID)
				if err != nil {
					return err
				}
				data, err := ledger.CheckInCalldata(id, signed.Signature)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "checkIn calldata: %s\n", hexutil.Encode(data))
			}
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&withCalldata, "calldata", false, "also print the checkIn transaction calldata")
	return cmd
}
