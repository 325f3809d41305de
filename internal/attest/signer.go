/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package attest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/service"
)

// SignerConfig wires a Signer.
type SignerConfig struct {
	PrivateKey    *ecdsa.PrivateKey
	Ledger        service.Ledger
	LedgerAddress common.Address
	Sessions      service.SessionRepository
	Policy        config.SessionPolicy
	Now           func() time.Time
	Logger        *log.Logger
}

// Signer issues check-in attestations with the single operator key.
type Signer struct {
	key           *ecdsa.PrivateKey
	address       common.Address
	ledger        service.Ledger
	ledgerAddress common.Address
	sessions      service.SessionRepository
	policy        config.SessionPolicy
	now           func() time.Time
	logger        *log.Logger
}

// Attestation is the signed authorization for one checkIn call.
type Attestation struct {
	Message     CheckInMessage
	MessageHash common.Hash
	Signature   []byte
}

// SignatureHex returns the 0x-prefixed signature the ledger's checkIn takes.
func (a *Attestation) SignatureHex() string {
	return hexutil.Encode(a.Signature)
}

func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("%w: signer private key is not loaded", ErrSigning)
	}
	if cfg.Ledger == nil || cfg.Sessions == nil {
		return nil, errors.New("signer requires a ledger and a session repository")
	}
	if (cfg.LedgerAddress == common.Address{}) {
		return nil, errors.New("signer requires the ledger contract address")
	}

	policy := cfg.Policy
	if policy == "" {
		policy = config.SessionPolicyLenient
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Signer{
		key:           cfg.PrivateKey,
		address:       crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		ledger:        cfg.Ledger,
		ledgerAddress: cfg.LedgerAddress,
		sessions:      cfg.Sessions,
		policy:        policy,
		now:           now,
		logger:        logger,
	}, nil
}

// Address is the operator address signatures recover to.
func (s *Signer) Address() common.Address {
	return s.address
}

// Attest validates ownership and session time against a fresh ledger read
// and signs the check-in message. Nothing is persisted.
func (s *Signer) Attest(ctx context.Context, req Request) (*Attestation, error) {
	pledgeID, owner, err := req.parse()
	if err != nil {
		return nil, err
	}

	pledge, err := s.ledger.Pledge(ctx, pledgeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: pledge %s does not exist", ErrAuthorization, pledgeID)
		}
		return nil, fmt.Errorf("%w: read pledge %s: %v", ErrUpstream, pledgeID, err)
	}

	// common.Address compares bytes, so letter case of the input is irrelevant
	if pledge.Owner != owner {
		s.logger.Printf("attest rejected: pledge %s is owned by %s, not %s", pledgeID, pledge.Owner.Hex(), owner.Hex())
		return nil, fmt.Errorf("%w: pledge %s", ErrAuthorization, pledgeID)
	}

	if err := s.checkSession(ctx, pledgeID, owner, pledge.SessionDuration); err != nil {
		return nil, err
	}

	msg := CheckInMessage{
		PledgeID:      pledgeID,
		Owner:         pledge.Owner,
		Ledger:        s.ledgerAddress,
		CompletedDays: pledge.CompletedDays,
		Status:        uint8(pledge.Status),
	}
	hash, err := msg.Hash()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	sig, err := SignPersonal(s.key, hash)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("attested check-in: pledge=%s owner=%s completedDays=%d status=%s hash=%s",
		pledgeID, owner.Hex(), pledge.CompletedDays, pledge.Status, hash.Hex())

	return &Attestation{Message: msg, MessageHash: hash, Signature: sig}, nil
}

func (s *Signer) checkSession(ctx context.Context, pledgeID *big.Int, owner common.Address, duration uint64) error {
	session, err := s.sessions.Find(ctx, pledgeID, owner)
	if err != nil {
		if s.policy == config.SessionPolicyStrict {
			return fmt.Errorf("%w: read session: %v", ErrUpstream, err)
		}
		s.logger.Printf("session lookup for pledge %s failed, skipping session validation: %v", pledgeID, err)
		return nil
	}
	if session == nil {
		if s.policy == config.SessionPolicyStrict {
			return &TimingError{RemainingSeconds: duration, NoSession: true}
		}
		s.logger.Printf("no session recorded for pledge %s owner %s, skipping session validation", pledgeID, owner.Hex())
		return nil
	}

	elapsed := s.now().Unix() - session.StartTime
	if elapsed < 0 {
		elapsed = 0
	}
	if uint64(elapsed) < duration {
		remaining := duration - uint64(elapsed)
		s.logger.Printf("attest rejected: pledge %s session has %d seconds remaining", pledgeID, remaining)
		return &TimingError{RemainingSeconds: remaining}
	}
	return nil
}
