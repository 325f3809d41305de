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
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/domain/service"
)

const defaultLedgerTimeout = 15 * time.Second

var ErrInvalidContractAddress = errors.New("invalid ledger contract address")

// ContractBackend is the subset of the JSON-RPC client used here.
// *ethclient.Client satisfies it.
type ContractBackend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client reads pledge state from the ledger contract. Every call is a fresh
// read except Constants, which is cached for the process lifetime.
type Client struct {
	backend ContractBackend
	address common.Address
	abi     abi.ABI
	timeout time.Duration
	logger  *log.Logger

	mu        sync.Mutex
	constants *model.ProtocolConstants
}

var _ service.Ledger = (*Client)(nil)

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, cfg config.LedgerConfig) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	return NewClient(rpc, cfg)
}

// NewClient wraps an existing backend.
func NewClient(backend ContractBackend, cfg config.LedgerConfig) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContractAddress, cfg.ContractAddress)
	}
	parsed, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("parse ledger ABI: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultLedgerTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		backend: backend,
		address: common.HexToAddress(cfg.ContractAddress),
		abi:     parsed,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Address returns the ledger contract address.
func (c *Client) Address() common.Address {
	return c.address
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *Client) callUint(ctx context.Context, method string) (*big.Int, error) {
	values, err := c.call(ctx, method)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s: expected 1 output, got %d", method, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, values[0])
	}
	return n, nil
}

func (c *Client) callAddress(ctx context.Context, method string) (common.Address, error) {
	values, err := c.call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("%s: expected 1 output, got %d", method, len(values))
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected output type %T", method, values[0])
	}
	return addr, nil
}

// Pledge reads pledges(id). A zero owner means the pledge does not exist.
func (c *Client) Pledge(ctx context.Context, id *big.Int) (*model.Pledge, error) {
	if id == nil || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid pledge id %v", id)
	}
	values, err := c.call(ctx, "pledges", id)
	if err != nil {
		return nil, err
	}
	if len(values) != 8 {
		return nil, fmt.Errorf("pledges: expected 8 outputs, got %d", len(values))
	}

	owner, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("pledges: unexpected owner type %T", values[0])
	}
	if owner == (common.Address{}) {
		return nil, domain.ErrNotFound
	}
	staked, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("pledges: unexpected stakedAmount type %T", values[1])
	}

	p := &model.Pledge{
		ID:           new(big.Int).Set(id),
		Owner:        owner,
		StakedAmount: staked,
	}
	if p.StartTime, err = asUint64(values[2]); err != nil {
		return nil, fmt.Errorf("pledges.startTime: %w", err)
	}
	if p.LastCheckIn, err = asUint64(values[3]); err != nil {
		return nil, fmt.Errorf("pledges.lastCheckIn: %w", err)
	}
	if p.SessionDuration, err = asUint64(values[4]); err != nil {
		return nil, fmt.Errorf("pledges.sessionDuration: %w", err)
	}
	if p.TargetDays, err = asUint8(values[5]); err != nil {
		return nil, fmt.Errorf("pledges.targetDays: %w", err)
	}
	if p.CompletedDays, err = asUint8(values[6]); err != nil {
		return nil, fmt.Errorf("pledges.completedDays: %w", err)
	}
	status, err := asUint8(values[7])
	if err != nil {
		return nil, fmt.Errorf("pledges.status: %w", err)
	}
	if p.Status, err = model.ParsePledgeStatus(status); err != nil {
		return nil, err
	}
	return p, nil
}

// Constants reads the protocol constants once and caches them.
func (c *Client) Constants(ctx context.Context) (model.ProtocolConstants, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.constants != nil {
		return *c.constants, nil
	}

	var (
		pc  model.ProtocolConstants
		err error
	)
	seconds := []struct {
		method string
		dst    *uint64
	}{
		{"COOLDOWN", &pc.Cooldown},
		{"GRACE_PERIOD", &pc.GracePeriod},
		{"MIN_SESSION_DURATION", &pc.MinSessionDuration},
		{"MAX_SESSION_DURATION", &pc.MaxSessionDuration},
	}
	for _, s := range seconds {
		n, err := c.callUint(ctx, s.method)
		if err != nil {
			return model.ProtocolConstants{}, err
		}
		if *s.dst, err = asUint64(n); err != nil {
			return model.ProtocolConstants{}, fmt.Errorf("%s: %w", s.method, err)
		}
	}
	if pc.MinStake, err = c.callUint(ctx, "MIN_STAKE"); err != nil {
		return model.ProtocolConstants{}, err
	}

	if err := pc.Validate(); err != nil {
		c.logger.Printf("ledger cooldown exceeds grace period, COOLDOWN takes precedence over LATE: %v", err)
	}
	c.constants = &pc
	return pc, nil
}

func (c *Client) SignerWallet(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "signerWallet")
}

func (c *Client) DevWallet(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "devWallet")
}

func (c *Client) NextPledgeID(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "nextPledgeId")
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}

// PledgeCreatedLogs returns the owner's PledgeCreated events in [from, to].
func (c *Client) PledgeCreatedLogs(ctx context.Context, owner common.Address, from, to uint64) ([]*model.PledgeCreatedEvent, error) {
	event, ok := c.abi.Events[eventPledgeCreated]
	if !ok {
		return nil, fmt.Errorf("ABI has no %s event", eventPledgeCreated)
	}

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.address},
		Topics: [][]common.Hash{
			{event.ID},
			nil,
			{common.BytesToHash(owner.Bytes())},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	logs, err := c.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", eventPledgeCreated, err)
	}

	events := make([]*model.PledgeCreatedEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed || len(l.Topics) != 3 || l.Topics[0] != event.ID {
			continue
		}
		values, err := c.abi.Unpack(eventPledgeCreated, l.Data)
		if err != nil || len(values) != 1 {
			c.logger.Printf("skipping malformed %s log in tx %s: %v", eventPledgeCreated, l.TxHash.Hex(), err)
			continue
		}
		amount, _ := values[0].(*big.Int)
		events = append(events, &model.PledgeCreatedEvent{
			PledgeID:    new(big.Int).SetBytes(l.Topics[1].Bytes()),
			Owner:       common.BytesToAddress(l.Topics[2].Bytes()),
			Amount:      amount,
			BlockNumber: l.BlockNumber,
		})
	}
	return events, nil
}
