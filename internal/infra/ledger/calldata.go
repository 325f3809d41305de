/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ledger

import (
	"fmt"
	"math/big"
)

// Calldata builders for the ledger's state-mutating calls. This core never
// sends transactions; the client submits them from its own wallet.

func pack(method string, args ...any) ([]byte, error) {
	parsed, err := ContractABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

func CreatePledgeCalldata(targetDays uint8, sessionDuration uint32) ([]byte, error) {
	return pack("createPledge", targetDays, sessionDuration)
}

func CheckInCalldata(pledgeID *big.Int, signature []byte) ([]byte, error) {
	return pack("checkIn", pledgeID, signature)
}

func StartRedemptionCalldata(pledgeID *big.Int) ([]byte, error) {
	return pack("startRedemption", pledgeID)
}

func ClaimPledgeCalldata(pledgeID *big.Int) ([]byte, error) {
	return pack("claimPledge", pledgeID)
}

func SurrenderCalldata(pledgeID *big.Int) ([]byte, error) {
	return pack("surrender", pledgeID)
}
