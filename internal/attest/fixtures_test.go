/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package attest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/infra/kv"
	"github.com/stretchr/testify/require"
)

const (
	testKeyHex    = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testSignerHex = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

var (
	testLedger = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testOwner  = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	testOther  = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	testEpoch  = time.Unix(1_700_000_000, 0)
)

type fakeLedger struct {
	mu      sync.Mutex
	pledges map[string]*model.Pledge
	signer  common.Address
	err     error
	reads   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{pledges: map[string]*model.Pledge{}, signer: common.HexToAddress(testSignerHex)}
}

func (f *fakeLedger) put(p *model.Pledge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pledges[p.ID.String()] = p
}

func (f *fakeLedger) Pledge(_ context.Context, id *big.Int) (*model.Pledge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pledges[id.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedger) Constants(context.Context) (model.ProtocolConstants, error) {
	return model.ProtocolConstants{Cooldown: 86400, GracePeriod: 129600, MinStake: big.NewInt(1e15), MinSessionDuration: 900, MaxSessionDuration: 14400}, nil
}

func (f *fakeLedger) SignerWallet(context.Context) (common.Address, error) {
	if f.err != nil {
		return common.Address{}, f.err
	}
	return f.signer, nil
}

// failingSessions fails every read.
type failingSessions struct{}

func (failingSessions) Put(context.Context, *model.Session) error { return errors.New("store down") }
func (failingSessions) Find(context.Context, *big.Int, common.Address) (*model.Session, error) {
	return nil, errors.New("store down")
}
func (failingSessions) Delete(context.Context, *big.Int, common.Address) error {
	return errors.New("store down")
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func activePledge(id int64) *model.Pledge {
	return &model.Pledge{
		ID:              big.NewInt(id),
		Owner:           testOwner,
		StakedAmount:    big.NewInt(1e16),
		StartTime:       uint64(testEpoch.Unix()) - 86400,
		SessionDuration: 3600,
		TargetDays:      7,
		CompletedDays:   2,
		Status:          model.StatusActive,
	}
}

type harness struct {
	ledger   *fakeLedger
	sessions *kv.SessionRepository
	clock    *clock
	logs     *bytes.Buffer
	signer   *Signer
	tracker  *SessionTracker
}

func newHarness(t *testing.T, policy config.SessionPolicy) *harness {
	t.Helper()
	key, err := ParsePrivateKey(testKeyHex)
	require.NoError(t, err)

	h := &harness{
		ledger:   newFakeLedger(),
		sessions: kv.NewSessionRepository(kv.NewMemoryStore()),
		clock:    &clock{t: testEpoch},
		logs:     &bytes.Buffer{},
	}
	logger := log.New(h.logs, "", 0)
	h.signer, err = NewSigner(SignerConfig{
		PrivateKey:    key,
		Ledger:        h.ledger,
		LedgerAddress: testLedger,
		Sessions:      h.sessions,
		Policy:        policy,
		Now:           h.clock.Now,
		Logger:        logger,
	})
	require.NoError(t, err)
	h.tracker = NewSessionTracker(h.sessions, h.clock.Now, logger)
	return h
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
