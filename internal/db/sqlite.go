// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"

	"github.com/uptrace/bun"
)

// SqliteStore is the default backend: a single local file on the bench
// station, no server required.
type SqliteStore struct {
	baseStore
}

// NewSqliteStore creates a store over an SQLite-backed *bun.DB and applies
// the pragmas a long-running single-writer workload wants.
func NewSqliteStore(bunDB *bun.DB) *SqliteStore {
	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := bunDB.ExecContext(ctx, pragma); err != nil {
			dbLogf("db: sqlite pragma failed (ignored): %v", err)
		}
	}
	return &SqliteStore{baseStore: baseStore{bun: bunDB}}
}
