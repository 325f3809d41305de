/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "lockd-cli"
	maxResponseBytes = 1 << 20
)

// APIClient talks to a running attestor server.
type APIClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *log.Logger
}

// SignedCheckIn is what the server returns for a successful attestation.
type SignedCheckIn struct {
	Signature   []byte
	MessageHash common.Hash
}

// PledgeView is the ledger snapshot the server reports for one pledge.
type PledgeView struct {
	Pledge    *model.Pledge           `json:"pledge"`
	Constants model.ProtocolConstants `json:"constants"`
}

// OwnerPledges lists an owner's pledges and the one selected as active.
type OwnerPledges struct {
	PledgeIDs      []string `json:"pledgeIds"`
	ActivePledgeID *string  `json:"activePledgeId"`
}

type apiError struct {
	Error            string  `json:"error"`
	RemainingSeconds *uint64 `json:"remainingSeconds"`
}

func NewAPIClient(cfg config.ClientConfig) (*APIClient, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is not configured")
	}
	base, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &APIClient{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// StartSession asks the server to record a session start and returns the
// server's startTime.
func (c *APIClient) StartSession(ctx context.Context, req attest.Request) (int64, error) {
	var out struct {
		Success   bool  `json:"success"`
		StartTime int64 `json:"startTime"`
	}
	if err := c.postJSON(ctx, "/session/start", req, &out); err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, fmt.Errorf("%w: server did not confirm the session", attest.ErrUpstream)
	}
	return out.StartTime, nil
}

// Attest requests a check-in signature.
func (c *APIClient) Attest(ctx context.Context, req attest.Request) (*SignedCheckIn, error) {
	var out struct {
		Signature   string `json:"signature"`
		MessageHash string `json:"messageHash"`
	}
	if err := c.postJSON(ctx, "/attest-checkin", req, &out); err != nil {
		return nil, err
	}
	sig, err := hexutil.Decode(out.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return &SignedCheckIn{Signature: sig, MessageHash: common.HexToHash(out.MessageHash)}, nil
}

func (c *APIClient) UserPledges(ctx context.Context, owner common.Address) (*OwnerPledges, error) {
	var out OwnerPledges
	q := url.Values{"address": {owner.Hex()}}
	if err := c.getJSON(ctx, "/user-pledges", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) PledgeStatus(ctx context.Context, pledgeID string) (*PledgeView, error) {
	var out PledgeView
	q := url.Values{"pledgeId": {pledgeID}}
	if err := c.getJSON(ctx, "/pledge-status", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) postJSON(ctx context.Context, path string, req attest.Request, out any) error {
	payload, err := json.Marshal(map[string]string{
		"pledgeId":     req.PledgeID,
		"ownerAddress": req.OwnerAddress,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	endpoint, err := c.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("build %s URL: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

func (c *APIClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint, err := c.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("build %s URL: %w", path, err)
	}
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(httpReq, out)
}

func (c *APIClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: perform request: %v", attest.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", attest.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return c.decodeError(req.URL.Path, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// decodeError turns an error response back into the attest error kinds.
func (c *APIClient) decodeError(path string, status int, body []byte) error {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		e.Error = string(bytes.TrimSpace(body))
	}
	c.logger.Printf("%s returned %d: %s", path, status, e.Error)

	switch {
	case status == http.StatusForbidden && e.RemainingSeconds != nil:
		return &attest.TimingError{RemainingSeconds: *e.RemainingSeconds}
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", attest.ErrValidation, e.Error)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", attest.ErrAuthorization, e.Error)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, e.Error)
	default:
		return fmt.Errorf("%w: %s returned %d: %s", attest.ErrUpstream, path, status, e.Error)
	}
}
