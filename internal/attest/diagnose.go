/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package attest

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/domain/service"
)

// SignerDiagnosis compares the ledger's registered signer with the local key.
type SignerDiagnosis struct {
	LedgerSigner common.Address `json:"contractSignerWallet"`
	LocalSigner  common.Address `json:"backendSignerAddress"`
	Match        bool           `json:"addressMatch"`
}

// DiagnoseSigner reads signerWallet from the ledger. A mismatch means every
// attestation signed with local will be rejected on-chain.
func DiagnoseSigner(ctx context.Context, ledger service.Ledger, local common.Address) (*SignerDiagnosis, error) {
	onChain, err := ledger.SignerWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read signerWallet: %v", ErrUpstream, err)
	}
	return &SignerDiagnosis{
		LedgerSigner: onChain,
		LocalSigner:  local,
		Match:        onChain == local,
	}, nil
}

func (s *Signer) Diagnose(ctx context.Context) (*SignerDiagnosis, error) {
	return DiagnoseSigner(ctx, s.ledger, s.address)
}
