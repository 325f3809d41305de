/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package attest

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// maxUint256 bounds pledge ids to the ledger's uint256 key space.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Request identifies a pledge and the address claiming to own it. Both
// fields are raw client input.
type Request struct {
	PledgeID     string
	OwnerAddress string
}

// ParsePledgeID parses a decimal uint256.
func ParsePledgeID(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: missing pledgeId", ErrValidation)
	}
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 || id.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: pledgeId %q is not a uint256", ErrValidation, s)
	}
	return id, nil
}

// ParseOwnerAddress parses a 20-byte hex address in any letter case.
func ParseOwnerAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, fmt.Errorf("%w: missing ownerAddress", ErrValidation)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: ownerAddress %q is not an address", ErrValidation, s)
	}
	return common.HexToAddress(s), nil
}

func (r Request) parse() (*big.Int, common.Address, error) {
	id, err := ParsePledgeID(r.PledgeID)
	if err != nil {
		return nil, common.Address{}, err
	}
	owner, err := ParseOwnerAddress(r.OwnerAddress)
	if err != nil {
		return nil, common.Address{}, err
	}
	return id, owner, nil
}
