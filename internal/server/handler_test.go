/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/infra/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	ledgerAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	owner      = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	stranger   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	epoch      = time.Unix(1_700_000_000, 0)
)

type stubLedger struct {
	pledges map[int64]*model.Pledge
	err     error
}

func (l *stubLedger) Pledge(_ context.Context, id *big.Int) (*model.Pledge, error) {
	if l.err != nil {
		return nil, l.err
	}
	p, ok := l.pledges[id.Int64()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (l *stubLedger) Constants(context.Context) (model.ProtocolConstants, error) {
	return model.ProtocolConstants{Cooldown: 86400, GracePeriod: 129600, MinStake: big.NewInt(1e15), MinSessionDuration: 900, MaxSessionDuration: 14400}, nil
}

func (l *stubLedger) SignerWallet(context.Context) (common.Address, error) {
	return common.Address{}, nil
}

type stubIndex map[common.Address][]*big.Int

func (s stubIndex) PledgeIDs(_ context.Context, o common.Address) ([]*big.Int, error) {
	return s[o], nil
}

type fixture struct {
	now    time.Time
	ledger *stubLedger
	srv    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: epoch}
	clock := func() time.Time { return f.now }
	logger := log.New(io.Discard, "", 0)

	f.ledger = &stubLedger{pledges: map[int64]*model.Pledge{
		1: {ID: big.NewInt(1), Owner: owner, StakedAmount: big.NewInt(1e16), StartTime: uint64(epoch.Unix()) - 300000, LastCheckIn: uint64(epoch.Unix()) - 100000, SessionDuration: 3600, TargetDays: 7, CompletedDays: 3, Status: model.StatusActive},
		2: {ID: big.NewInt(2), Owner: owner, StakedAmount: big.NewInt(1e16), StartTime: uint64(epoch.Unix()), SessionDuration: 900, TargetDays: 3, Status: model.StatusClaimed},
	}}
	key, err := attest.ParsePrivateKey(testKeyHex)
	require.NoError(t, err)
	sessions := kv.NewSessionRepository(kv.NewMemoryStore())
	signer, err := attest.NewSigner(attest.SignerConfig{
		PrivateKey:    key,
		Ledger:        f.ledger,
		LedgerAddress: ledgerAddr,
		Sessions:      sessions,
		Policy:        config.SessionPolicyLenient,
		Now:           clock,
		Logger:        logger,
	})
	require.NoError(t, err)

	s, err := New(config.AttestorConfig{Addr: ":0", Logger: logger}, Services{
		Attestor: signer,
		Sessions: attest.NewSessionTracker(sessions, clock, logger),
		Ledger:   f.ledger,
		Index:    stubIndex{owner: {big.NewInt(1), big.NewInt(2)}},
		Now:      clock,
	})
	require.NoError(t, err)
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return out
}

func TestHandler_SessionThenAttest(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/session/start", `{"pledgeId":"1","ownerAddress":"`+owner.Hex()+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, epoch.Unix(), body["startTime"])

	f.now = epoch.Add(3599 * time.Second)
	resp, body = f.post(t, "/attest-checkin", `{"pledgeId":1,"ownerAddress":"`+strings.ToLower(owner.Hex())+`"}`)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.EqualValues(t, 1, body["remainingSeconds"])
	assert.NotContains(t, body, "signature")

	f.now = epoch.Add(3600 * time.Second)
	resp, body = f.post(t, "/attest-checkin", `{"pledgeId":"1","userAddress":"`+owner.Hex()+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sig, err := hexutil.Decode(body["signature"].(string))
	require.NoError(t, err)
	hash := common.HexToHash(body["messageHash"].(string))
	signer, err := attest.RecoverPersonal(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), signer)
}

func TestHandler_AttestErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing owner", `{"pledgeId":"1"}`, http.StatusBadRequest},
		{"missing pledge", `{"ownerAddress":"` + owner.Hex() + `"}`, http.StatusBadRequest},
		{"bad address", `{"pledgeId":"1","ownerAddress":"0x12"}`, http.StatusBadRequest},
		{"negative id", `{"pledgeId":-1,"ownerAddress":"` + owner.Hex() + `"}`, http.StatusBadRequest},
		{"not json", `pledgeId=1`, http.StatusBadRequest},
		{"not owner", `{"pledgeId":"1","ownerAddress":"` + stranger.Hex() + `"}`, http.StatusForbidden},
		{"unknown pledge", `{"pledgeId":"42","ownerAddress":"` + owner.Hex() + `"}`, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.post(t, "/attest-checkin", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "signature")
		})
	}
}

func TestHandler_UpstreamFailureHidesCause(t *testing.T) {
	f := newFixture(t)
	f.ledger.err = errors.New("dial tcp 10.0.0.1:8545: connection refused")

	resp, body := f.post(t, "/attest-checkin", `{"pledgeId":"1","ownerAddress":"`+owner.Hex()+`"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, attest.ErrUpstream.Error(), body["error"])
}

func TestHandler_Routing(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/attest-checkin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(f.srv.URL+"/session/start", "text/plain", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestHandler_RequestIDEchoed(t *testing.T) {
	f := newFixture(t)
	id := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(requestIDHeader))
}

func TestHandler_UserPledges(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/user-pledges?address="+owner.Hex())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"1", "2"}, body["pledgeIds"])
	assert.Equal(t, "2", body["activePledgeId"])

	resp, body = f.get(t, "/user-pledges?address="+stranger.Hex())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["pledgeIds"])
	assert.Nil(t, body["activePledgeId"])

	resp, _ = f.get(t, "/user-pledges?address=bob")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_PledgeStatus(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/pledge-status?pledgeId=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := body["status"].(map[string]any)
	assert.Equal(t, "NO_SESSION", status["phase"])
	assert.Equal(t, "start-session", status["nextAction"])

	f.now = epoch.Add(40000 * time.Second)
	_, body = f.get(t, "/pledge-status?pledgeId=1")
	assert.Equal(t, "LATE", body["status"].(map[string]any)["phase"])

	resp, _ = f.get(t, "/pledge-status?pledgeId=9")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.get(t, "/pledge-status?pledgeId=x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
