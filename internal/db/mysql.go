// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// MySQLStore serves deployments where the factory already runs MySQL or
// MariaDB for its MES tooling.
type MySQLStore struct {
	baseStore
}

// NewMySQLStore creates a store over a MySQL-backed *bun.DB.
func NewMySQLStore(bunDB *bun.DB) *MySQLStore {
	return &MySQLStore{baseStore: baseStore{bun: bunDB}}
}

// SetKnownHostKey uses MySQL's upsert syntax; ON CONFLICT is not available.
func (s *MySQLStore) SetKnownHostKey(host, key string) error {
	ctx := context.Background()
	row := &knownHostRow{Host: host, Key: key}
	_, err := s.bun.NewInsert().Model(row).
		On("DUPLICATE KEY UPDATE").
		Set("`key` = VALUES(`key`)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store known host: %w", err)
	}
	s.audit("host_trusted", host)
	return nil
}
