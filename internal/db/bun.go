// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// baseStore implements Store on top of a *bun.DB. The dialect stores embed
// it; anything engine-specific is overridden there.
type baseStore struct {
	bun *bun.DB
}

func (s *baseStore) SaveReport(r *model.TestReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp == "" {
		r.Timestamp = model.Now()
	}
	ctx := context.Background()
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := reportToRow(r)
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
		for _, res := range r.Results {
			if _, err := tx.NewInsert().Model(resultToRow(r.ID, res)).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert result %d: %w", res.TestNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit("report_saved", fmt.Sprintf("%s %s", r.Barcode, r.OverallStatus))
	return nil
}

// audit records a write to the audit trail. Failures are logged, not
// propagated, so an audit problem never blocks production data.
func (s *baseStore) audit(action, details string) {
	if err := s.LogAction(action, details); err != nil {
		dbLogf("db: audit log write failed: %v", err)
	}
}

func (s *baseStore) GetReportsForBoard(b model.Board) ([]model.TestReport, error) {
	return s.queryReports(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("board_name = ?", b.Name).
			Where("board_revision = ?", b.Revision).
			Where("board_variant = ?", b.Variant).
			Where("board_serial = ?", b.Serial)
	})
}

func (s *baseStore) GetReports(filter model.ReportFilter) ([]model.TestReport, error) {
	return s.queryReports(func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.Board != "" {
			q = q.Where("board_name = ?", filter.Board)
		}
		if filter.Revision != "" {
			q = q.Where("board_revision = ?", filter.Revision)
		}
		if filter.Variant != "" {
			q = q.Where("board_variant = ?", filter.Variant)
		}
		if filter.SerialFrom != "" {
			q = q.Where("board_serial >= ?", filter.SerialFrom)
		}
		if filter.SerialTo != "" {
			q = q.Where("board_serial <= ?", filter.SerialTo)
		}
		return q
	})
}

func (s *baseStore) GetUnsyncedReports() ([]model.TestReport, error) {
	return s.queryReports(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("synced = ?", false)
	})
}

// queryReports runs a report select with results preloaded, newest first.
func (s *baseStore) queryReports(apply func(*bun.SelectQuery) *bun.SelectQuery) ([]model.TestReport, error) {
	ctx := context.Background()
	var rows []*reportRow
	q := s.bun.NewSelect().Model(&rows).
		Relation("Results", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("test_number ASC")
		}).
		Order("timestamp DESC")
	q = apply(q)
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	out := make([]model.TestReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToReport(row))
	}
	return out, nil
}

func (s *baseStore) MarkReportSynced(id string) error {
	ctx := context.Background()
	res, err := s.bun.NewUpdate().Model((*reportRow)(nil)).
		Set("synced = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark report synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *baseStore) ListBoardNames() ([]string, error) {
	return s.distinct("board_name", nil)
}

func (s *baseStore) ListRevisions(board string) ([]string, error) {
	return s.distinct("board_revision", map[string]string{"board_name": board})
}

func (s *baseStore) ListVariants(board, revision string) ([]string, error) {
	return s.distinct("board_variant", map[string]string{
		"board_name":     board,
		"board_revision": revision,
	})
}

func (s *baseStore) distinct(column string, where map[string]string) ([]string, error) {
	ctx := context.Background()
	var values []string
	q := s.bun.NewSelect().Model((*reportRow)(nil)).
		ColumnExpr("DISTINCT ?", bun.Ident(column)).
		OrderExpr("? ASC", bun.Ident(column))
	for col, val := range where {
		q = q.Where("? = ?", bun.Ident(col), val)
	}
	if err := q.Scan(ctx, &values); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", column, err)
	}
	return values, nil
}

func (s *baseStore) SerialBounds(board, revision, variant string) (string, string, error) {
	ctx := context.Background()
	var bounds struct {
		Low  sql.NullString `bun:"low"`
		High sql.NullString `bun:"high"`
	}
	err := s.bun.NewSelect().Model((*reportRow)(nil)).
		ColumnExpr("MIN(board_serial) AS low, MAX(board_serial) AS high").
		Where("board_name = ?", board).
		Where("board_revision = ?", revision).
		Where("board_variant = ?", variant).
		Scan(ctx, &bounds)
	if err != nil {
		return "", "", fmt.Errorf("failed to query serial bounds: %w", err)
	}
	return bounds.Low.String, bounds.High.String, nil
}

func (s *baseStore) AddRedTagMessage(m *model.RedTagMessage) error {
	if m.Timestamp == "" {
		m.Timestamp = model.Now()
	}
	ctx := context.Background()
	row := &redTagRow{
		Timestamp: m.Timestamp,
		Barcode:   m.Barcode,
		Author:    m.Author,
		Message:   m.Message,
	}
	if _, err := s.bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert red tag message: %w", err)
	}
	m.ID = int(row.ID)
	s.audit("red_tag_added", m.Barcode)
	return nil
}

func (s *baseStore) GetRedTagMessages(barcode string) ([]model.RedTagMessage, error) {
	ctx := context.Background()
	var rows []*redTagRow
	err := s.bun.NewSelect().Model(&rows).
		Where("barcode = ?", barcode).
		Order("timestamp ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query red tag messages: %w", err)
	}
	out := make([]model.RedTagMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToRedTag(row))
	}
	return out, nil
}

func (s *baseStore) UpdateRedTagMessage(id int, message string) error {
	ctx := context.Background()
	res, err := s.bun.NewUpdate().Model((*redTagRow)(nil)).
		Set("message = ?", message).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update red tag message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	s.audit("red_tag_updated", fmt.Sprintf("id=%d", id))
	return nil
}

func (s *baseStore) DeleteRedTagMessage(id int) error {
	ctx := context.Background()
	res, err := s.bun.NewDelete().Model((*redTagRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete red tag message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	s.audit("red_tag_deleted", fmt.Sprintf("id=%d", id))
	return nil
}

func (s *baseStore) AddProcessMessage(m *model.ProcessMessage) error {
	if m.Timestamp == "" {
		m.Timestamp = model.Now()
	}
	ctx := context.Background()
	row := &processRow{
		Timestamp: m.Timestamp,
		Barcode:   m.Barcode,
		Author:    m.Author,
		Message:   m.Message,
	}
	if _, err := s.bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert process message: %w", err)
	}
	m.ID = int(row.ID)
	s.audit("process_flow_added", m.Barcode)
	return nil
}

func (s *baseStore) GetProcessMessages(barcode string) ([]model.ProcessMessage, error) {
	ctx := context.Background()
	var rows []*processRow
	err := s.bun.NewSelect().Model(&rows).
		Where("barcode = ?", barcode).
		Order("timestamp ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query process messages: %w", err)
	}
	out := make([]model.ProcessMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToProcess(row))
	}
	return out, nil
}

// GetKnownHostKey returns the pinned public key for a host, or "" when the
// host has never been trusted.
func (s *baseStore) GetKnownHostKey(host string) (string, error) {
	ctx := context.Background()
	row := &knownHostRow{}
	err := s.bun.NewSelect().Model(row).Where("host = ?", host).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query known host: %w", err)
	}
	return row.Key, nil
}

// SetKnownHostKey pins (or replaces) the public key for a host.
func (s *baseStore) SetKnownHostKey(host, key string) error {
	ctx := context.Background()
	row := &knownHostRow{Host: host, Key: key}
	_, err := s.bun.NewInsert().Model(row).
		On("CONFLICT (host) DO UPDATE").
		Set("key = EXCLUDED.key").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store known host: %w", err)
	}
	s.audit("host_trusted", host)
	return nil
}

func (s *baseStore) LogAction(action string, details string) error {
	ctx := context.Background()
	row := &auditRow{
		Timestamp: model.Now(),
		Action:    action,
		Details:   details,
	}
	if _, err := s.bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert audit log entry: %w", err)
	}
	return nil
}

func (s *baseStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var rows []*auditRow
	err := s.bun.NewSelect().Model(&rows).
		Order("timestamp DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	out := make([]model.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToAudit(row))
	}
	return out, nil
}

func (s *baseStore) ExportDataForBackup() (*model.BackupData, error) {
	reports, err := s.queryReports(func(q *bun.SelectQuery) *bun.SelectQuery { return q })
	if err != nil {
		return nil, err
	}
	ctx := context.Background()

	var redRows []*redTagRow
	if err := s.bun.NewSelect().Model(&redRows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export red tag messages: %w", err)
	}
	var procRows []*processRow
	if err := s.bun.NewSelect().Model(&procRows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export process messages: %w", err)
	}
	var auditRows []*auditRow
	if err := s.bun.NewSelect().Model(&auditRows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export audit log: %w", err)
	}

	backup := &model.BackupData{Reports: reports}
	for _, row := range redRows {
		backup.RedTagMessages = append(backup.RedTagMessages, rowToRedTag(row))
	}
	for _, row := range procRows {
		backup.ProcessMessages = append(backup.ProcessMessages, rowToProcess(row))
	}
	for _, row := range auditRows {
		backup.AuditLog = append(backup.AuditLog, rowToAudit(row))
	}
	return backup, nil
}

func (s *baseStore) ImportDataFromBackup(backup *model.BackupData) error {
	ctx := context.Background()
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Destructive restore: wipe before loading.
		for _, m := range []any{
			(*resultRow)(nil), (*reportRow)(nil),
			(*redTagRow)(nil), (*processRow)(nil), (*auditRow)(nil),
		} {
			if _, err := tx.NewDelete().Model(m).Where("1 = 1").Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear table during restore: %w", err)
			}
		}
		return insertBackup(ctx, tx, backup, nil)
	})
}

func (s *baseStore) IntegrateDataFromBackup(backup *model.BackupData) error {
	ctx := context.Background()
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := make(map[string]bool)
		var ids []string
		if err := tx.NewSelect().Model((*reportRow)(nil)).Column("id").Scan(ctx, &ids); err != nil {
			return fmt.Errorf("failed to read existing report ids: %w", err)
		}
		for _, id := range ids {
			existing[id] = true
		}
		return insertBackup(ctx, tx, backup, existing)
	})
}

// insertBackup loads a backup into the database. When skipReports is non-nil,
// reports whose ID appears in the map are left alone and messages are only
// added when an identical row is not already present.
func insertBackup(ctx context.Context, tx bun.Tx, backup *model.BackupData, skipReports map[string]bool) error {
	merge := skipReports != nil
	for i := range backup.Reports {
		r := &backup.Reports[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if merge && skipReports[r.ID] {
			continue
		}
		if _, err := tx.NewInsert().Model(reportToRow(r)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore report %s: %w", r.ID, err)
		}
		for _, res := range r.Results {
			if _, err := tx.NewInsert().Model(resultToRow(r.ID, res)).Exec(ctx); err != nil {
				return fmt.Errorf("failed to restore result for report %s: %w", r.ID, err)
			}
		}
	}
	for _, m := range backup.RedTagMessages {
		if merge {
			n, err := tx.NewSelect().Model((*redTagRow)(nil)).
				Where("barcode = ?", m.Barcode).
				Where("timestamp = ?", m.Timestamp).
				Where("message = ?", m.Message).
				Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to check red tag message: %w", err)
			}
			if n > 0 {
				continue
			}
		}
		row := &redTagRow{Timestamp: m.Timestamp, Barcode: m.Barcode, Author: m.Author, Message: m.Message}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore red tag message: %w", err)
		}
	}
	for _, m := range backup.ProcessMessages {
		if merge {
			n, err := tx.NewSelect().Model((*processRow)(nil)).
				Where("barcode = ?", m.Barcode).
				Where("timestamp = ?", m.Timestamp).
				Where("message = ?", m.Message).
				Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to check process message: %w", err)
			}
			if n > 0 {
				continue
			}
		}
		row := &processRow{Timestamp: m.Timestamp, Barcode: m.Barcode, Author: m.Author, Message: m.Message}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore process message: %w", err)
		}
	}
	for _, e := range backup.AuditLog {
		if merge {
			n, err := tx.NewSelect().Model((*auditRow)(nil)).
				Where("timestamp = ?", e.Timestamp).
				Where("action = ?", e.Action).
				Where("details = ?", e.Details).
				Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to check audit log entry: %w", err)
			}
			if n > 0 {
				continue
			}
		}
		row := &auditRow{Timestamp: e.Timestamp, Action: e.Action, Details: e.Details}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore audit log entry: %w", err)
		}
	}
	return nil
}
