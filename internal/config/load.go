/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys understood by Load. Flags are bound to the same names.
const (
	KeyServerAddr        = "server.addr"
	KeySignerPrivateKey  = "signer.private_key"
	KeyLedgerRPCURL      = "ledger.rpc_url"
	KeyLedgerContract    = "ledger.contract_address"
	KeyLedgerTimeout     = "ledger.timeout"
	KeyLedgerLookback    = "ledger.log_lookback_blocks"
	KeySessionPolicy     = "attest.session_policy"
	KeyStoreBackend      = "store.backend"
	KeyStoreSQLitePath   = "store.sqlite_path"
	KeyStoreRedisAddr    = "store.redis_addr"
	KeyStoreRedisPass    = "store.redis_password"
	KeyStoreRedisDB      = "store.redis_db"
	KeyStoreRedisTLS     = "store.redis_tls"
	KeyClientServerURL   = "client.server_url"
	KeyClientStatePath   = "client.state_path"
	KeyClientTimeout     = "client.timeout"
	defaultConfigDirName = ".lockd"
)

var (
	ErrMissingSignerKey = errors.New("signer private key is not configured")
	ErrMissingLedger    = errors.New("ledger rpc url and contract address are required")
)

// NewViper returns a viper instance with defaults, environment bindings and,
// when present, the TOML config file applied. configFile may be empty.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LOCKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by earlier deployments
	_ = v.BindEnv(KeySignerPrivateKey, "LOCKD_SIGNER_PRIVATE_KEY", "SIGNER_PRIVATE_KEY")
	_ = v.BindEnv(KeyLedgerRPCURL, "LOCKD_LEDGER_RPC_URL", "RPC_URL")
	_ = v.BindEnv(KeyLedgerContract, "LOCKD_LEDGER_CONTRACT_ADDRESS", "LOCKD_ADDRESS", "NEXT_PUBLIC_LOCKD_ADDRESS")

	v.SetConfigType("toml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, defaultConfigDirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerAddr, ":8080")
	v.SetDefault(KeyLedgerTimeout, 15*time.Second)
	v.SetDefault(KeyLedgerLookback, 90000)
	v.SetDefault(KeySessionPolicy, string(SessionPolicyLenient))
	v.SetDefault(KeyStoreBackend, string(StoreBackendSQLite))
	v.SetDefault(KeyStoreSQLitePath, "lockd_state.db")
	v.SetDefault(KeyClientServerURL, "http://127.0.0.1:8080")
	v.SetDefault(KeyClientTimeout, 30*time.Second)
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault(KeyClientStatePath, filepath.Join(home, defaultConfigDirName, "client.db"))
	} else {
		v.SetDefault(KeyClientStatePath, "lockd_client.db")
	}
}

// LoadLedger reads the ledger section.
func LoadLedger(v *viper.Viper) (LedgerConfig, error) {
	cfg := LedgerConfig{
		RPCURL:            v.GetString(KeyLedgerRPCURL),
		ContractAddress:   v.GetString(KeyLedgerContract),
		Timeout:           v.GetDuration(KeyLedgerTimeout),
		LogLookbackBlocks: v.GetUint64(KeyLedgerLookback),
	}
	if cfg.RPCURL == "" || cfg.ContractAddress == "" {
		return cfg, ErrMissingLedger
	}
	return cfg, nil
}

// LoadStore reads the store section.
func LoadStore(v *viper.Viper) (StoreConfig, error) {
	cfg := StoreConfig{
		Backend:       StoreBackend(strings.ToLower(v.GetString(KeyStoreBackend))),
		SQLitePath:    v.GetString(KeyStoreSQLitePath),
		RedisAddr:     v.GetString(KeyStoreRedisAddr),
		RedisPassword: v.GetString(KeyStoreRedisPass),
		RedisDB:       v.GetInt(KeyStoreRedisDB),
		RedisTLS:      v.GetBool(KeyStoreRedisTLS),
	}
	switch cfg.Backend {
	case StoreBackendMemory:
	case StoreBackendSQLite:
		if cfg.SQLitePath == "" {
			return cfg, errors.New("store.sqlite_path is empty")
		}
	case StoreBackendRedis:
		if cfg.RedisAddr == "" {
			return cfg, errors.New("store.redis_addr is empty")
		}
	default:
		return cfg, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	return cfg, nil
}

// Load builds the full server configuration. A missing signer key is an
// error: the server must not start without one.
func Load(v *viper.Viper) (AttestorConfig, error) {
	cfg := AttestorConfig{
		Addr:          v.GetString(KeyServerAddr),
		SignerKeyHex:  strings.TrimSpace(v.GetString(KeySignerPrivateKey)),
		SessionPolicy: SessionPolicy(strings.ToLower(v.GetString(KeySessionPolicy))),
	}
	if cfg.SignerKeyHex == "" {
		return cfg, ErrMissingSignerKey
	}
	switch cfg.SessionPolicy {
	case SessionPolicyLenient, SessionPolicyStrict:
	default:
		return cfg, fmt.Errorf("unknown session policy %q", cfg.SessionPolicy)
	}

	ledger, err := LoadLedger(v)
	if err != nil {
		return cfg, err
	}
	cfg.Ledger = ledger

	store, err := LoadStore(v)
	if err != nil {
		return cfg, err
	}
	cfg.Store = store
	return cfg, nil
}

// LoadClient reads the client section.
func LoadClient(v *viper.Viper) ClientConfig {
	return ClientConfig{
		ServerURL: v.GetString(KeyClientServerURL),
		StatePath: v.GetString(KeyClientStatePath),
		Timeout:   v.GetDuration(KeyClientTimeout),
	}
}
