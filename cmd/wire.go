/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/client"
	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/domain/service"
	"github.com/lockd/attestor/internal/infra/kv"
	"github.com/lockd/attestor/internal/infra/ledger"
	"github.com/lockd/attestor/internal/infra/redis"
	"github.com/lockd/attestor/internal/infra/sqlite"
	"github.com/lockd/attestor/internal/server"
)

type attestorApp struct {
	ledger  *ledger.Client
	signer  *attest.Signer
	tracker *attest.SessionTracker
	index   *ledger.EventIndex
	closers []func() error
}

func (a *attestorApp) services() server.Services {
	return server.Services{
		Attestor: a.signer,
		Sessions: a.tracker,
		Ledger:   a.ledger,
		Index:    a.index,
		Now:      time.Now,
	}
}

func (a *attestorApp) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// wireAttestor builds the server-side graph. The signer key is parsed first
// so a bad key fails before any connection is opened.
func wireAttestor(ctx context.Context, cfg config.AttestorConfig, logger *log.Logger) (*attestorApp, error) {
	key, err := attest.ParsePrivateKey(cfg.SignerKeyHex)
	if err != nil {
		return nil, err
	}

	cfg.Ledger.Logger = logger
	ledgerClient, err := ledger.Dial(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	app := &attestorApp{ledger: ledgerClient}
	store, db, err := openStore(ctx, cfg.Store, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	sessions := kv.NewSessionRepository(store)
	app.signer, err = attest.NewSigner(attest.SignerConfig{
		PrivateKey:    key,
		Ledger:        ledgerClient,
		LedgerAddress: ledgerClient.Address(),
		Sessions:      sessions,
		Policy:        cfg.SessionPolicy,
		Logger:        logger,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.tracker = attest.NewSessionTracker(sessions, time.Now, logger)
	app.index = ledger.NewEventIndex(ledgerClient, sqlite.NewPledgeEventRepository(db), cfg.Ledger.LogLookbackBlocks, logger)
	return app, nil
}

// openStore returns the session KV store and the SQLite database used by the
// event index. Without a SQLite backend the index lives in memory.
func openStore(ctx context.Context, cfg config.StoreConfig, app *attestorApp) (service.KVStore, *sql.DB, error) {
	dbPath := ":memory:"
	if cfg.Backend == config.StoreBackendSQLite || cfg.Backend == config.StoreBackendRedis && cfg.SQLitePath != "" {
		dbPath = cfg.SQLitePath
	}
	db, err := sqlite.InitDB(ctx, dbPath)
	if err != nil {
		return nil, nil, err
	}
	app.closers = append(app.closers, func() error { return sqlite.CloseDB(db) })

	switch cfg.Backend {
	case config.StoreBackendMemory:
		return kv.NewMemoryStore(), db, nil
	case config.StoreBackendSQLite:
		return sqlite.NewKVStore(db), db, nil
	case config.StoreBackendRedis:
		rs, err := redis.NewStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, rs.Close)
		return rs, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// wireFocus builds the owner-side workflow backed by the local state file.
func wireFocus(ctx context.Context, cfg config.ClientConfig) (*client.Focus, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create state directory: %w", err)
	}
	db, err := sqlite.InitDB(ctx, cfg.StatePath)
	if err != nil {
		return nil, nil, err
	}
	api, err := client.NewAPIClient(cfg)
	if err != nil {
		_ = sqlite.CloseDB(db)
		return nil, nil, err
	}
	local := kv.NewSessionRepository(sqlite.NewKVStore(db))
	return client.NewFocus(api, local, time.Now, cfg.Logger), func() error { return sqlite.CloseDB(db) }, nil
}
