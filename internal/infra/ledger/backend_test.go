/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lockd/attestor/internal/config"
	"github.com/stretchr/testify/require"
)

const contractHex = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

type pledgeTuple struct {
	owner           common.Address
	staked          *big.Int
	startTime       uint64
	lastCheckIn     uint64
	sessionDuration uint32
	targetDays      uint8
	completedDays   uint8
	status          uint8
}

// fakeBackend answers eth_call with ABI-packed outputs.
type fakeBackend struct {
	abi     abi.ABI
	mu      sync.Mutex
	uints   map[string]*big.Int
	addrs   map[string]common.Address
	pledges map[string]pledgeTuple
	logs    []types.Log
	head    uint64
	calls   map[string]int
	queries []ethereum.FilterQuery
	err     error
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	parsed, err := ContractABI()
	require.NoError(t, err)
	return &fakeBackend{
		abi: parsed,
		uints: map[string]*big.Int{
			"COOLDOWN":             big.NewInt(86400),
			"GRACE_PERIOD":         big.NewInt(129600),
			"MIN_STAKE":            big.NewInt(1e15),
			"MIN_SESSION_DURATION": big.NewInt(900),
			"MAX_SESSION_DURATION": big.NewInt(14400),
			"nextPledgeId":         big.NewInt(4),
		},
		addrs: map[string]common.Address{
			"signerWallet": common.HexToAddress("0x00000000000000000000000000000000000051c0"),
			"devWallet":    common.HexToAddress("0x0000000000000000000000000000000000000dee"),
		},
		pledges: map[string]pledgeTuple{},
		calls:   map[string]int{},
	}
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if call.To == nil || *call.To != common.HexToAddress(contractHex) {
		return nil, errors.New("unexpected contract address")
	}
	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls[method.Name]++

	switch method.Name {
	case "pledges":
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		p, ok := f.pledges[args[0].(*big.Int).String()]
		if !ok {
			p = pledgeTuple{staked: new(big.Int)}
		}
		return method.Outputs.Pack(p.owner, p.staked, p.startTime, p.lastCheckIn, p.sessionDuration, p.targetDays, p.completedDays, p.status)
	case "signerWallet", "devWallet":
		return method.Outputs.Pack(f.addrs[method.Name])
	default:
		v, ok := f.uints[method.Name]
		if !ok {
			return nil, fmt.Errorf("no fixture for %s", method.Name)
		}
		return method.Outputs.Pack(v)
	}
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, q)
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber < q.FromBlock.Uint64() || l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Topics) > 2 && len(q.Topics[2]) > 0 && l.Topics[2] != q.Topics[2][0] {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.head, nil
}

func (f *fakeBackend) addPledgeCreated(t *testing.T, id int64, owner common.Address, amount int64, block uint64) {
	t.Helper()
	event := f.abi.Events[eventPledgeCreated]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(amount))
	require.NoError(t, err)
	f.logs = append(f.logs, types.Log{
		Address:     common.HexToAddress(contractHex),
		Topics:      []common.Hash{event.ID, common.BigToHash(big.NewInt(id)), common.BytesToHash(owner.Bytes())},
		Data:        data,
		BlockNumber: block,
	})
}

func newTestClient(t *testing.T, backend ContractBackend) *Client {
	t.Helper()
	c, err := NewClient(backend, config.LedgerConfig{ContractAddress: contractHex})
	require.NoError(t, err)
	return c
}
