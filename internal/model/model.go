// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures shared across testhub:
// boards, test plans, test reports and the bookkeeping records (red tag
// messages, process flow messages, audit log) that travel with a board
// through the production line.
package model

import (
	"fmt"
	"time"
)

// TimeLayout is the timestamp format used throughout testhub. It sorts
// lexically, which the report queries rely on.
const TimeLayout = "20060102_150405"

// Now returns the current time in TimeLayout.
func Now() string {
	return time.Now().Format(TimeLayout)
}

// Test conclusions. These exact strings appear in stored reports and
// exported JSON, so they are part of the on-disk format.
const (
	StatusPass = "Pass"
	StatusFail = "Fail"
)

// Board identifies a physical PCB on the bench. The four fields come from
// the scanned barcode (name-revision-variant-serial).
type Board struct {
	Name     string
	Revision string
	Variant  string
	Serial   string
}

// String returns the canonical name-rev-variant-serial form used for report
// lookups and export file names.
func (b Board) String() string {
	return fmt.Sprintf("%s-%s-%s-%s", b.Name, b.Revision, b.Variant, b.Serial)
}

// TestStep is a single measurement in a test plan: drive one instrument pin
// and check the averaged scope reading against limits.
type TestStep struct {
	Number       int     `yaml:"number"`
	Label        string  `yaml:"label"`
	Pin          int     `yaml:"pin"`
	ScopeChannel int     `yaml:"scope_channel"`
	Samples      int     `yaml:"samples"`
	SettleMillis int     `yaml:"settle_ms"`
	Target       float64 `yaml:"target"`
	LowerLimit   float64 `yaml:"lower_limit"`
	UpperLimit   float64 `yaml:"upper_limit"`
}

// TestPlan describes the full bench procedure for one board design.
type TestPlan struct {
	Board        string     `yaml:"board"`
	Revisions    []string   `yaml:"revisions"`
	SupplyVolts  float64    `yaml:"supply_volts"`
	Description  string     `yaml:"description"`
	RevisionDate string     `yaml:"revision_date"`
	Steps        []TestStep `yaml:"steps"`
}

// AppliesTo reports whether the plan is valid for the given board revision.
// An empty revision list means the plan applies to every revision.
func (p TestPlan) AppliesTo(rev string) bool {
	if len(p.Revisions) == 0 {
		return true
	}
	for _, r := range p.Revisions {
		if r == rev {
			return true
		}
	}
	return false
}

// TestResult is the measured outcome of one TestStep.
type TestResult struct {
	TestNumber    int     `json:"test_number"`
	Description   string  `json:"description"`
	TargetValue   float64 `json:"target_value"`
	LowerLimit    float64 `json:"lower_limit"`
	UpperLimit    float64 `json:"upper_limit"`
	MeasuredValue float64 `json:"measured_value"`
	Conclusion    string  `json:"conclusion"`
}

// TestReport is one complete run of a test plan against one board.
type TestReport struct {
	ID            string       `json:"id,omitempty"`
	Timestamp     string       `json:"timestamp"`
	Barcode       string       `json:"barcode"`
	Board         Board        `json:"-"`
	Station       string       `json:"station,omitempty"`
	OverallStatus string       `json:"overall_status"`
	Results       []TestResult `json:"test_results"`
	Synced        bool         `json:"-"`
}

// Failures returns the results that concluded Fail.
func (r TestReport) Failures() []TestResult {
	var out []TestResult
	for _, res := range r.Results {
		if res.Conclusion == StatusFail {
			out = append(out, res)
		}
	}
	return out
}

// RedTagMessage is a rework/quarantine note attached to a board.
type RedTagMessage struct {
	ID        int    `json:"-"`
	Timestamp string `json:"timestamp"`
	Barcode   string `json:"-"`
	Author    string `json:"author,omitempty"`
	Message   string `json:"red_tag_message"`
}

// ProcessMessage records a process-flow event for a board (e.g. "washed",
// "conformal coat applied").
type ProcessMessage struct {
	ID        int    `json:"-"`
	Timestamp string `json:"timestamp"`
	Barcode   string `json:"-"`
	Author    string `json:"author,omitempty"`
	Message   string `json:"process_flow_message"`
}

// AuditLogEntry records a station action for traceability.
type AuditLogEntry struct {
	ID        int
	Timestamp string
	Action    string
	Details   string
}

// ReportFilter narrows report queries for the yield views. Zero values mean
// "no constraint"; serial bounds compare lexically, matching the zero-padded
// serials the barcodes carry.
type ReportFilter struct {
	Board      string
	Revision   string
	Variant    string
	SerialFrom string
	SerialTo   string
}

// YieldStats summarizes pass/fail counts for a set of reports.
type YieldStats struct {
	Tested  int
	Passed  int
	Failed  int
	Percent float64
}

// FailureModeCount is one row of a failure Pareto: how often a given test
// point failed across a set of reports.
type FailureModeCount struct {
	Label string
	Count int
}

// BackupData is the full-database snapshot written by `testhub backup` and
// consumed by restore/migrate.
type BackupData struct {
	Reports         []TestReport     `json:"test_reports"`
	RedTagMessages  []RedTagMessage  `json:"red_tag_messages"`
	ProcessMessages []ProcessMessage `json:"process_flow_messages"`
	AuditLog        []AuditLogEntry  `json:"audit_log"`
}
