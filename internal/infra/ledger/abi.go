/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ledger

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/lockd/attestor/resources"
)

const eventPledgeCreated = "PledgeCreated"

var (
	parsedABI    abi.ABI
	parseABIErr  error
	parseABIOnce sync.Once
)

// ContractABI returns the parsed ledger ABI.
func ContractABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		parsedABI, parseABIErr = abi.JSON(bytes.NewReader(resources.LockdABI))
	})
	return parsedABI, parseABIErr
}

// asUint64 converts an unpacked unsigned ABI value to uint64.
func asUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case *big.Int:
		if n == nil || n.Sign() < 0 || !n.IsUint64() {
			return 0, fmt.Errorf("value %v does not fit uint64", n)
		}
		return n.Uint64(), nil
	default:
		return 0, fmt.Errorf("unexpected ABI value type %T", v)
	}
}

func asUint8(v any) (uint8, error) {
	n, err := asUint64(v)
	if err != nil {
		return 0, err
	}
	if n > 0xff {
		return 0, fmt.Errorf("value %d does not fit uint8", n)
	}
	return uint8(n), nil
}
