/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package attest

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CheckInMessage is the tuple the ledger verifier hashes:
// keccak256(abi.encode(uint256 pledgeId, address owner, address ledger,
// uint8 completedDays, uint8 status)). There is no nonce or timestamp; the
// ledger rejects replays by checking completedDays and status.
type CheckInMessage struct {
	PledgeID      *big.Int
	Owner         common.Address
	Ledger        common.Address
	CompletedDays uint8
	Status        uint8
}

var checkInArguments = mustArguments("uint256", "address", "address", "uint8", "uint8")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// Encode returns the fixed-width ABI encoding (5 words).
func (m *CheckInMessage) Encode() ([]byte, error) {
	if m.PledgeID == nil || m.PledgeID.Sign() < 0 {
		return nil, errors.New("pledge id must be a non-negative integer")
	}
	return checkInArguments.Pack(m.PledgeID, m.Owner, m.Ledger, m.CompletedDays, m.Status)
}

// Hash returns keccak256 of the encoding.
func (m *CheckInMessage) Hash() (common.Hash, error) {
	encoded, err := m.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

// DecodeCheckInMessage parses an encoded message.
func DecodeCheckInMessage(data []byte) (*CheckInMessage, error) {
	values, err := checkInArguments.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decode check-in message: %w", err)
	}
	if len(values) != 5 {
		return nil, fmt.Errorf("decode check-in message: %d values", len(values))
	}
	m := &CheckInMessage{}
	var ok bool
	if m.PledgeID, ok = values[0].(*big.Int); !ok {
		return nil, errors.New("decode check-in message: pledge id")
	}
	if m.Owner, ok = values[1].(common.Address); !ok {
		return nil, errors.New("decode check-in message: owner")
	}
	if m.Ledger, ok = values[2].(common.Address); !ok {
		return nil, errors.New("decode check-in message: ledger")
	}
	if m.CompletedDays, ok = values[3].(uint8); !ok {
		return nil, errors.New("decode check-in message: completed days")
	}
	if m.Status, ok = values[4].(uint8); !ok {
		return nil, errors.New("decode check-in message: status")
	}
	return m, nil
}
