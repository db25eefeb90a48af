// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"github.com/uptrace/bun"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// reportRow is the bun mapping for the test_reports table.
type reportRow struct {
	bun.BaseModel `bun:"table:test_reports"`

	ID            string    `bun:"id,pk"`
	Timestamp     string    `bun:"timestamp,notnull"`
	Barcode       string    `bun:"barcode,notnull"`
	BoardName     string    `bun:"board_name,notnull"`
	BoardRevision string    `bun:"board_revision,notnull"`
	BoardVariant  string    `bun:"board_variant"`
	BoardSerial   string    `bun:"board_serial,notnull"`
	Station       string    `bun:"station"`
	OverallStatus string    `bun:"overall_status,notnull"`
	Synced        bool      `bun:"synced,notnull,default:false"`

	Results []*resultRow `bun:"rel:has-many,join:id=report_id"`
}

// resultRow is the bun mapping for the test_results table.
type resultRow struct {
	bun.BaseModel `bun:"table:test_results"`

	ID            int64   `bun:"id,pk,autoincrement"`
	ReportID      string  `bun:"report_id,notnull"`
	TestNumber    int     `bun:"test_number,notnull"`
	Description   string  `bun:"description,notnull"`
	TargetValue   float64 `bun:"target_value"`
	LowerLimit    float64 `bun:"lower_limit"`
	UpperLimit    float64 `bun:"upper_limit"`
	MeasuredValue float64 `bun:"measured_value"`
	Conclusion    string  `bun:"conclusion,notnull"`
}

// redTagRow is the bun mapping for the red_tag_messages table.
type redTagRow struct {
	bun.BaseModel `bun:"table:red_tag_messages"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp string    `bun:"timestamp,notnull"`
	Barcode   string    `bun:"barcode,notnull"`
	Author    string    `bun:"author"`
	Message   string    `bun:"message,notnull"`
}

// processRow is the bun mapping for the process_messages table.
type processRow struct {
	bun.BaseModel `bun:"table:process_messages"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp string    `bun:"timestamp,notnull"`
	Barcode   string    `bun:"barcode,notnull"`
	Author    string    `bun:"author"`
	Message   string    `bun:"message,notnull"`
}

// knownHostRow is the bun mapping for the known_hosts table.
type knownHostRow struct {
	bun.BaseModel `bun:"table:known_hosts"`

	Host string `bun:"host,pk"`
	Key  string `bun:"key,notnull"`
}

// auditRow is the bun mapping for the audit_log table.
type auditRow struct {
	bun.BaseModel `bun:"table:audit_log"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp string    `bun:"timestamp,notnull"`
	Action    string    `bun:"action,notnull"`
	Details   string    `bun:"details"`
}

func reportToRow(r *model.TestReport) *reportRow {
	return &reportRow{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		Barcode:       r.Barcode,
		BoardName:     r.Board.Name,
		BoardRevision: r.Board.Revision,
		BoardVariant:  r.Board.Variant,
		BoardSerial:   r.Board.Serial,
		Station:       r.Station,
		OverallStatus: r.OverallStatus,
		Synced:        r.Synced,
	}
}

func rowToReport(row *reportRow) model.TestReport {
	r := model.TestReport{
		ID:        row.ID,
		Timestamp: row.Timestamp,
		Barcode:   row.Barcode,
		Board: model.Board{
			Name:     row.BoardName,
			Revision: row.BoardRevision,
			Variant:  row.BoardVariant,
			Serial:   row.BoardSerial,
		},
		Station:       row.Station,
		OverallStatus: row.OverallStatus,
		Synced:        row.Synced,
	}
	for _, res := range row.Results {
		r.Results = append(r.Results, model.TestResult{
			TestNumber:    res.TestNumber,
			Description:   res.Description,
			TargetValue:   res.TargetValue,
			LowerLimit:    res.LowerLimit,
			UpperLimit:    res.UpperLimit,
			MeasuredValue: res.MeasuredValue,
			Conclusion:    res.Conclusion,
		})
	}
	return r
}

func resultToRow(reportID string, res model.TestResult) *resultRow {
	return &resultRow{
		ReportID:      reportID,
		TestNumber:    res.TestNumber,
		Description:   res.Description,
		TargetValue:   res.TargetValue,
		LowerLimit:    res.LowerLimit,
		UpperLimit:    res.UpperLimit,
		MeasuredValue: res.MeasuredValue,
		Conclusion:    res.Conclusion,
	}
}

func rowToRedTag(row *redTagRow) model.RedTagMessage {
	return model.RedTagMessage{
		ID:        int(row.ID),
		Timestamp: row.Timestamp,
		Barcode:   row.Barcode,
		Author:    row.Author,
		Message:   row.Message,
	}
}

func rowToProcess(row *processRow) model.ProcessMessage {
	return model.ProcessMessage{
		ID:        int(row.ID),
		Timestamp: row.Timestamp,
		Barcode:   row.Barcode,
		Author:    row.Author,
		Message:   row.Message,
	}
}

func rowToAudit(row *auditRow) model.AuditLogEntry {
	return model.AuditLogEntry{
		ID:        int(row.ID),
		Timestamp: row.Timestamp,
		Action:    row.Action,
		Details:   row.Details,
	}
}
