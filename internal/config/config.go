/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"log"
	"time"
)

// SessionPolicy decides what the signer does when no session was recorded.
type SessionPolicy string

const (
	// SessionPolicyLenient signs when no session record exists or the session
	// store cannot be read.
	SessionPolicyLenient SessionPolicy = "lenient"
	// SessionPolicyStrict refuses to sign without a completed session.
	SessionPolicyStrict SessionPolicy = "strict"
)

// StoreBackend names a key-value store implementation.
type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendSQLite StoreBackend = "sqlite"
	StoreBackendRedis  StoreBackend = "redis"
)

// AttestorConfig captures the tunables required to start the attestation server.
type AttestorConfig struct {
	Addr          string
	SignerKeyHex  string
	SessionPolicy SessionPolicy
	Logger        *log.Logger
	Ledger        LedgerConfig
	Store         StoreConfig
}

type LedgerConfig struct {
	RPCURL            string
	ContractAddress   string
	Timeout           time.Duration
	LogLookbackBlocks uint64
	Logger            *log.Logger
}

type StoreConfig struct {
	Backend       StoreBackend
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool
}

// ClientConfig is used by the CLI commands that talk to a running server.
type ClientConfig struct {
	ServerURL string
	StatePath string
	Timeout   time.Duration
	Logger    *log.Logger
}
