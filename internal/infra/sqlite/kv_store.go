/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/service"
)

// KVStore persists key-value records in the kv_records table.
type KVStore struct {
	db *sql.DB
}

var _ service.KVStore = (*KVStore)(nil)

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `
		SELECT value
		FROM kv_records
		WHERE key = ?
		LIMIT 1
	`
	var value []byte
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan kv record: %w", err)
	}
	return value, nil
}

// Set inserts or replaces the record. Concurrent writers race; the last one wins.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	const q = `
		INSERT INTO kv_records (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert kv record: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	const q = `
		DELETE FROM kv_records
		WHERE key = ?
	`
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("delete kv record: %w", err)
	}
	return nil
}
