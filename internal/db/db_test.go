// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"testing"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// newTestStore opens a fresh shared-cache in-memory SQLite store for one
// test. Each test gets its own database name so tests stay independent.
func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := "file:test_" + t.Name() + "?mode=memory&cache=shared"
	s, err := NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("NewStoreFromDSN: %v", err)
	}
	return s
}

func sampleReport(serial, status string) *model.TestReport {
	board := model.Board{Name: "imx2cc", Revision: "0020", Variant: "A1", Serial: serial}
	return &model.TestReport{
		Barcode:       "IMX2CC-0020-A1-" + serial,
		Board:         board,
		Station:       "bench-1",
		OverallStatus: status,
		Results: []model.TestResult{
			{TestNumber: 1, Description: "VDD_2V9", TargetValue: 0.62, LowerLimit: 0.42, UpperLimit: 0.82, MeasuredValue: 0.61, Conclusion: model.StatusPass},
			{TestNumber: 2, Description: "EE_1V8", TargetValue: 0.48, LowerLimit: 0.28, UpperLimit: 0.68, MeasuredValue: 0.47, Conclusion: status},
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	s := newTestStore(t)

	r := sampleReport("000123", model.StatusPass)
	if err := s.SaveReport(r); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if r.ID == "" {
		t.Fatal("SaveReport did not assign an ID")
	}
	if r.Timestamp == "" {
		t.Fatal("SaveReport did not assign a timestamp")
	}

	got, err := s.GetReportsForBoard(r.Board)
	if err != nil {
		t.Fatalf("GetReportsForBoard: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 report, got %d", len(got))
	}
	if got[0].Barcode != r.Barcode {
		t.Errorf("barcode = %q, want %q", got[0].Barcode, r.Barcode)
	}
	if len(got[0].Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got[0].Results))
	}
	if got[0].Results[0].TestNumber != 1 || got[0].Results[1].TestNumber != 2 {
		t.Errorf("results not ordered by test number: %+v", got[0].Results)
	}
	if got[0].Results[0].MeasuredValue != 0.61 {
		t.Errorf("measured value = %v, want 0.61", got[0].Results[0].MeasuredValue)
	}
}

func TestGetReportsFilter(t *testing.T) {
	s := newTestStore(t)

	for _, serial := range []string{"000100", "000200", "000300"} {
		if err := s.SaveReport(sampleReport(serial, model.StatusPass)); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}
	other := sampleReport("000400", model.StatusFail)
	other.Board.Name = "cam_ctrlg4"
	other.Barcode = "CAM_CTRLG4-0002-A1-000400"
	if err := s.SaveReport(other); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := s.GetReports(model.ReportFilter{Board: "imx2cc"})
	if err != nil {
		t.Fatalf("GetReports: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("board filter: expected 3 reports, got %d", len(got))
	}

	got, err = s.GetReports(model.ReportFilter{Board: "imx2cc", SerialFrom: "000150", SerialTo: "000250"})
	if err != nil {
		t.Fatalf("GetReports: %v", err)
	}
	if len(got) != 1 || got[0].Board.Serial != "000200" {
		t.Fatalf("serial range filter: got %+v", got)
	}

	got, err = s.GetReports(model.ReportFilter{})
	if err != nil {
		t.Fatalf("GetReports: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("empty filter: expected 4 reports, got %d", len(got))
	}
}

func TestUnsyncedAndMarkSynced(t *testing.T) {
	s := newTestStore(t)

	r1 := sampleReport("000001", model.StatusPass)
	r2 := sampleReport("000002", model.StatusFail)
	for _, r := range []*model.TestReport{r1, r2} {
		if err := s.SaveReport(r); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	unsynced, err := s.GetUnsyncedReports()
	if err != nil {
		t.Fatalf("GetUnsyncedReports: %v", err)
	}
	if len(unsynced) != 2 {
		t.Fatalf("expected 2 unsynced reports, got %d", len(unsynced))
	}

	if err := s.MarkReportSynced(r1.ID); err != nil {
		t.Fatalf("MarkReportSynced: %v", err)
	}
	unsynced, err = s.GetUnsyncedReports()
	if err != nil {
		t.Fatalf("GetUnsyncedReports: %v", err)
	}
	if len(unsynced) != 1 || unsynced[0].ID != r2.ID {
		t.Fatalf("expected only %s unsynced, got %+v", r2.ID, unsynced)
	}

	if err := s.MarkReportSynced("no-such-id"); err == nil {
		t.Error("MarkReportSynced with unknown id should fail")
	}
}

func TestDrillDownLists(t *testing.T) {
	s := newTestStore(t)

	boards := []model.Board{
		{Name: "imx2cc", Revision: "0020", Variant: "A1", Serial: "000010"},
		{Name: "imx2cc", Revision: "0020", Variant: "A2", Serial: "000020"},
		{Name: "imx2cc", Revision: "0021", Variant: "A1", Serial: "000030"},
		{Name: "cam_ctrlg4", Revision: "0002", Variant: "B1", Serial: "000040"},
	}
	for _, b := range boards {
		r := sampleReport(b.Serial, model.StatusPass)
		r.Board = b
		r.Barcode = b.String()
		if err := s.SaveReport(r); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	names, err := s.ListBoardNames()
	if err != nil {
		t.Fatalf("ListBoardNames: %v", err)
	}
	if len(names) != 2 || names[0] != "cam_ctrlg4" || names[1] != "imx2cc" {
		t.Fatalf("ListBoardNames = %v", names)
	}

	revs, err := s.ListRevisions("imx2cc")
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if len(revs) != 2 || revs[0] != "0020" || revs[1] != "0021" {
		t.Fatalf("ListRevisions = %v", revs)
	}

	vars, err := s.ListVariants("imx2cc", "0020")
	if err != nil {
		t.Fatalf("ListVariants: %v", err)
	}
	if len(vars) != 2 || vars[0] != "A1" || vars[1] != "A2" {
		t.Fatalf("ListVariants = %v", vars)
	}

	low, high, err := s.SerialBounds("imx2cc", "0020", "A1")
	if err != nil {
		t.Fatalf("SerialBounds: %v", err)
	}
	if low != "000010" || high != "000010" {
		t.Fatalf("SerialBounds = %q..%q", low, high)
	}

	low, high, err = s.SerialBounds("imx2cc", "9999", "A1")
	if err != nil {
		t.Fatalf("SerialBounds (no rows): %v", err)
	}
	if low != "" || high != "" {
		t.Fatalf("SerialBounds with no rows = %q..%q, want empty", low, high)
	}
}

func TestRedTagMessages(t *testing.T) {
	s := newTestStore(t)
	const barcode = "IMX2CC-0020-A1-000123"

	m := &model.RedTagMessage{Barcode: barcode, Author: "inspector", Message: "lifted pad on U3"}
	if err := s.AddRedTagMessage(m); err != nil {
		t.Fatalf("AddRedTagMessage: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("AddRedTagMessage did not assign an ID")
	}

	msgs, err := s.GetRedTagMessages(barcode)
	if err != nil {
		t.Fatalf("GetRedTagMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Message != "lifted pad on U3" {
		t.Fatalf("GetRedTagMessages = %+v", msgs)
	}

	if err := s.UpdateRedTagMessage(m.ID, "lifted pad on U3, reworked"); err != nil {
		t.Fatalf("UpdateRedTagMessage: %v", err)
	}
	msgs, _ = s.GetRedTagMessages(barcode)
	if msgs[0].Message != "lifted pad on U3, reworked" {
		t.Fatalf("update not visible: %+v", msgs)
	}

	if err := s.DeleteRedTagMessage(m.ID); err != nil {
		t.Fatalf("DeleteRedTagMessage: %v", err)
	}
	msgs, _ = s.GetRedTagMessages(barcode)
	if len(msgs) != 0 {
		t.Fatalf("expected no messages after delete, got %+v", msgs)
	}

	if err := s.UpdateRedTagMessage(9999, "x"); err == nil {
		t.Error("UpdateRedTagMessage with unknown id should fail")
	}
	if err := s.DeleteRedTagMessage(9999); err == nil {
		t.Error("DeleteRedTagMessage with unknown id should fail")
	}
}

func TestProcessMessages(t *testing.T) {
	s := newTestStore(t)
	const barcode = "IMX2CC-0020-A1-000123"

	m := &model.ProcessMessage{Barcode: barcode, Message: "washed"}
	if err := s.AddProcessMessage(m); err != nil {
		t.Fatalf("AddProcessMessage: %v", err)
	}
	msgs, err := s.GetProcessMessages(barcode)
	if err != nil {
		t.Fatalf("GetProcessMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Message != "washed" {
		t.Fatalf("GetProcessMessages = %+v", msgs)
	}
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)

	if err := s.LogAction("test_action", "details here"); err != nil {
		t.Fatalf("LogAction: %v", err)
	}
	entries, err := s.GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "test_action" {
		t.Fatalf("GetAllAuditLogEntries = %+v", entries)
	}
}

func TestSaveReportWritesAuditTrail(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveReport(sampleReport("000123", model.StatusPass)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	entries, err := s.GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "report_saved" {
		t.Fatalf("expected report_saved audit entry, got %+v", entries)
	}
}

func TestKnownHostKeys(t *testing.T) {
	s := newTestStore(t)

	key, err := s.GetKnownHostKey("results.example.com")
	if err != nil {
		t.Fatalf("GetKnownHostKey: %v", err)
	}
	if key != "" {
		t.Errorf("unknown host returned key %q", key)
	}

	if err := s.SetKnownHostKey("results.example.com", "ssh-ed25519 AAAA..."); err != nil {
		t.Fatalf("SetKnownHostKey: %v", err)
	}
	key, _ = s.GetKnownHostKey("results.example.com")
	if key != "ssh-ed25519 AAAA..." {
		t.Errorf("key = %q", key)
	}

	// Re-pinning replaces the key.
	if err := s.SetKnownHostKey("results.example.com", "ssh-ed25519 BBBB..."); err != nil {
		t.Fatalf("SetKnownHostKey replace: %v", err)
	}
	key, _ = s.GetKnownHostKey("results.example.com")
	if key != "ssh-ed25519 BBBB..." {
		t.Errorf("replaced key = %q", key)
	}
}

func TestBackupRestoreAndIntegrate(t *testing.T) {
	src := newTestStore(t)

	r := sampleReport("000123", model.StatusFail)
	if err := src.SaveReport(r); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := src.AddRedTagMessage(&model.RedTagMessage{Barcode: r.Barcode, Message: "shorted cap"}); err != nil {
		t.Fatalf("AddRedTagMessage: %v", err)
	}

	backup, err := src.ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup: %v", err)
	}
	if len(backup.Reports) != 1 || len(backup.RedTagMessages) != 1 {
		t.Fatalf("backup contents: %d reports, %d red tags", len(backup.Reports), len(backup.RedTagMessages))
	}

	dst, err := NewStoreFromDSN("sqlite", "file:test_restore_dst?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStoreFromDSN: %v", err)
	}
	if err := dst.ImportDataFromBackup(backup); err != nil {
		t.Fatalf("ImportDataFromBackup: %v", err)
	}
	got, err := dst.GetReportsForBoard(r.Board)
	if err != nil {
		t.Fatalf("GetReportsForBoard: %v", err)
	}
	if len(got) != 1 || len(got[0].Results) != 2 {
		t.Fatalf("restored report: %+v", got)
	}

	// Integrating the same backup again must not duplicate anything.
	if err := dst.IntegrateDataFromBackup(backup); err != nil {
		t.Fatalf("IntegrateDataFromBackup: %v", err)
	}
	got, _ = dst.GetReportsForBoard(r.Board)
	if len(got) != 1 {
		t.Fatalf("integrate duplicated reports: %d", len(got))
	}
	msgs, _ := dst.GetRedTagMessages(r.Barcode)
	if len(msgs) != 1 {
		t.Fatalf("integrate duplicated red tags: %d", len(msgs))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dsn := "file:test_migrations_idempotent?mode=memory&cache=shared"
	s1, err := NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.LogAction("probe", ""); err != nil {
		t.Fatalf("LogAction: %v", err)
	}
	// Second open over the same shared database re-runs RunMigrations.
	if _, err := NewStoreFromDSN("sqlite", dsn); err != nil {
		t.Fatalf("second open: %v", err)
	}
}
