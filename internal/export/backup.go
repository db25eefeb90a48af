// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// BackupExt is the extension for compressed station backups.
const BackupExt = ".thbak"

// WriteBackup writes a zstd-compressed JSON snapshot of the database.
func WriteBackup(path string, data *model.BackupData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(data); err != nil {
		_ = enc.Close()
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish backup: %w", err)
	}
	return f.Close()
}

// ReadBackup loads a backup written by WriteBackup.
func ReadBackup(path string) (*model.BackupData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer dec.Close()

	data := &model.BackupData{}
	if err := json.NewDecoder(dec).Decode(data); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	return data, nil
}
