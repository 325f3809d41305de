/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/infra/ledger"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

type diagnosis struct {
	LedgerAddress string                  `json:"contractAddress"`
	Signer        *attest.SignerDiagnosis `json:"signer"`
	Constants     model.ProtocolConstants `json:"constants"`
	ConstantsOK   bool                    `json:"constantsConsistent"`
	NextPledgeID  string                  `json:"nextPledgeId"`
	DevWallet     string                  `json:"devWallet"`
	Verdict       string                  `json:"verdict"`
}

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Compare the configured signer key with the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.viper(cmd, nil)
			if err != nil {
				return err
			}
			key, err := attest.ParsePrivateKey(v.GetString(config.KeySignerPrivateKey))
			if err != nil {
				return err
			}
			ledgerCfg, err := config.LoadLedger(v)
			if err != nil {
				return err
			}
			ledgerCfg.Logger = klog.NewStandardLogger("INFO")

			client, err := ledger.Dial(cmd.Context(), ledgerCfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d := diagnosis{LedgerAddress: client.Address().Hex()}
			if d.Signer, err = attest.DiagnoseSigner(ctx, client, crypto.PubkeyToAddress(key.PublicKey)); err != nil {
				return err
			}
			if d.Constants, err = client.Constants(ctx); err != nil {
				return err
			}
			d.ConstantsOK = d.Constants.Validate() == nil
			next, err := client.NextPledgeID(ctx)
			if err != nil {
				return err
			}
			d.NextPledgeID = next.String()
			dev, err := client.DevWallet(ctx)
			if err != nil {
				return err
			}
			d.DevWallet = dev.Hex()

			if d.Signer.Match {
				d.Verdict = "signer key matches the ledger; check-ins will verify"
			} else {
				d.Verdict = "signer key does not match the ledger signerWallet; every check-in will be rejected"
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(d); err != nil {
				return err
			}
			if !d.Signer.Match {
				return fmt.Errorf("signer mismatch: ledger expects %s", d.Signer.LedgerSigner.Hex())
			}
			return nil
		},
	}
}
