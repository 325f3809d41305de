/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PledgeCreatedEvent represents an indexed PledgeCreated log entry.
type PledgeCreatedEvent struct {
	PledgeID    *big.Int
	Owner       common.Address
	Amount      *big.Int
	BlockNumber uint64
}
