// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// Store defines the interface for all database operations in testhub.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Report methods
	SaveReport(r *model.TestReport) error
	GetReportsForBoard(b model.Board) ([]model.TestReport, error)
	GetReports(filter model.ReportFilter) ([]model.TestReport, error)
	GetUnsyncedReports() ([]model.TestReport, error)
	MarkReportSynced(id string) error

	// Drill-down filter methods (Yields view)
	ListBoardNames() ([]string, error)
	ListRevisions(board string) ([]string, error)
	ListVariants(board, revision string) ([]string, error)
	SerialBounds(board, revision, variant string) (low, high string, err error)

	// Red tag message methods
	AddRedTagMessage(m *model.RedTagMessage) error
	GetRedTagMessages(barcode string) ([]model.RedTagMessage, error)
	UpdateRedTagMessage(id int, message string) error
	DeleteRedTagMessage(id int) error

	// Process flow message methods
	AddProcessMessage(m *model.ProcessMessage) error
	GetProcessMessages(barcode string) ([]model.ProcessMessage, error)

	// Known host methods (report upload host key pinning)
	GetKnownHostKey(host string) (string, error)
	SetKnownHostKey(host, key string) error

	// Audit log methods
	LogAction(action string, details string) error
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)

	// Backup methods
	ExportDataForBackup() (*model.BackupData, error)
	ImportDataFromBackup(backup *model.BackupData) error
	IntegrateDataFromBackup(backup *model.BackupData) error
}
