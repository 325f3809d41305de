/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/infra/kv"
	"github.com/lockd/attestor/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	testOwner  = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	testLedger = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func TestServeRefusesToStartWithoutSignerKey(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "serve")
	require.ErrorIs(t, err, config.ErrMissingSignerKey)
}

func TestServeRefusesMalformedSignerKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LOCKD_SIGNER_PRIVATE_KEY", "0xnot-a-key")
	t.Setenv("RPC_URL", "http://127.0.0.1:1")
	t.Setenv("LOCKD_ADDRESS", testLedger.Hex())

	_, _, err := executeCLI(t, home, "serve", "--store", "memory")
	require.ErrorIs(t, err, attest.ErrSigning)
}

func TestConfigShowRedactsSignerKey(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".lockd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".lockd", "config.toml"), []byte(`
[attest]
session_policy = "strict"
`), 0o600))
	t.Setenv("SIGNER_PRIVATE_KEY", testKeyHex)

	stdout, _, err := executeCLI(t, home, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "<redacted>")
	assert.NotContains(t, stdout, testKeyHex)
	assert.Contains(t, stdout, "strict")
	assert.Contains(t, stdout, "15s")
}

func TestStatusRequiresOwner(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"owner\" not set")
}

func TestSessionAttestStatusFlow(t *testing.T) {
	home := t.TempDir()
	env := newServerEnv(t)

	stdout, _, err := executeCLI(t, home, "session", "start", "--server", env.url, "--pledge", "1", "--owner", testOwner.Hex())
	require.NoError(t, err)
	assert.Contains(t, stdout, "session started for pledge 1")

	stdout, _, err = executeCLI(t, home, "status", "--server", env.url, "--owner", testOwner.Hex(), "--json")
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &st))
	assert.Equal(t, "1", st["pledgeId"])
	assert.Equal(t, "SESSION_RUNNING", st["status"].(map[string]any)["phase"])

	_, _, err = executeCLI(t, home, "attest", "--server", env.url, "--pledge", "1", "--owner", testOwner.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3600 seconds remaining")

	env.advance(time.Hour)
	stdout, _, err = executeCLI(t, home, "attest", "--server", env.url, "--pledge", "1", "--owner", testOwner.Hex(), "--calldata")
	require.NoError(t, err)
	assert.Contains(t, stdout, "signature:    0x")
	assert.Contains(t, stdout, "checkIn calldata: 0x")

	stdout, _, err = executeCLI(t, home, "status", "--server", env.url, "--owner", testOwner.Hex(), "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &st))
	assert.Equal(t, "NO_SESSION", st["status"].(map[string]any)["phase"])

	stdout, _, err = executeCLI(t, home, "status", "--server", env.url, "--owner", testOwner.Hex())
	require.NoError(t, err)
	assert.Contains(t, stdout, "LockD pledge #1")
}

type serverEnv struct {
	url string
	mu  sync.Mutex
	now time.Time
}

func (e *serverEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *serverEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

type memLedger struct {
	pledge *model.Pledge
}

func (l *memLedger) Pledge(_ context.Context, id *big.Int) (*model.Pledge, error) {
	if id.Cmp(l.pledge.ID) != 0 {
		return nil, domain.ErrNotFound
	}
	return l.pledge, nil
}

func (l *memLedger) Constants(context.Context) (model.ProtocolConstants, error) {
	return model.ProtocolConstants{Cooldown: 86400, GracePeriod: 129600, MinStake: big.NewInt(1e15), MinSessionDuration: 900, MaxSessionDuration: 14400}, nil
}

func (l *memLedger) SignerWallet(context.Context) (common.Address, error) {
	return common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), nil
}

type oneOwnerIndex struct{}

func (oneOwnerIndex) PledgeIDs(_ context.Context, owner common.Address) ([]*big.Int, error) {
	if owner == testOwner {
		return []*big.Int{big.NewInt(1)}, nil
	}
	return nil, nil
}

// newServerEnv runs the real handler over in-memory collaborators. The
// server clock starts at wall time so client-side derivation agrees with it.
func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()
	env := &serverEnv{now: time.Now().Truncate(time.Second)}
	logger := log.New(io.Discard, "", 0)

	ledger := &memLedger{pledge: &model.Pledge{
		ID:              big.NewInt(1),
		Owner:           testOwner,
		StakedAmount:    big.NewInt(1e16),
		StartTime:       uint64(env.now.Unix()) - 1000,
		SessionDuration: 3600,
		TargetDays:      7,
		Status:          model.StatusActive,
	}}
	key, err := attest.ParsePrivateKey(testKeyHex)
	require.NoError(t, err)
	sessions := kv.NewSessionRepository(kv.NewMemoryStore())
	signer, err := attest.NewSigner(attest.SignerConfig{
		PrivateKey:    key,
		Ledger:        ledger,
		LedgerAddress: testLedger,
		Sessions:      sessions,
		Policy:        config.SessionPolicyStrict,
		Now:           env.clock,
		Logger:        logger,
	})
	require.NoError(t, err)

	srv, err := server.New(config.AttestorConfig{Logger: logger}, server.Services{
		Attestor: signer,
		Sessions: attest.NewSessionTracker(sessions, env.clock, logger),
		Ledger:   ledger,
		Index:    oneOwnerIndex{},
		Now:      env.clock,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	env.url = ts.URL
	return env
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	for _, name := range []string{
		"LOCKD_SIGNER_PRIVATE_KEY", "SIGNER_PRIVATE_KEY", "RPC_URL", "LOCKD_LEDGER_RPC_URL",
		"LOCKD_ADDRESS", "NEXT_PUBLIC_LOCKD_ADDRESS", "LOCKD_LEDGER_CONTRACT_ADDRESS",
	} {
		if _, set := os.LookupEnv(name); !set {
			t.Setenv(name, "")
		}
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
