// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/uptrace/bun"

// PostgresStore serves deployments where several stations share one
// results database.
type PostgresStore struct {
	baseStore
}

// NewPostgresStore creates a store over a Postgres-backed *bun.DB.
func NewPostgresStore(bunDB *bun.DB) *PostgresStore {
	return &PostgresStore{baseStore: baseStore{bun: bunDB}}
}
