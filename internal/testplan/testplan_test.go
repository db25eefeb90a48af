// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package testplan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

func TestAllEmbeddedPlansValid(t *testing.T) {
	plans, err := All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(plans) < 3 {
		t.Fatalf("expected at least 3 embedded plans, got %d", len(plans))
	}
	for _, p := range plans {
		if err := Validate(p); err != nil {
			t.Errorf("plan %s: %v", p.Board, err)
		}
	}
}

func TestForBoard(t *testing.T) {
	p, err := ForBoard("imx2cc", "0020")
	if err != nil {
		t.Fatalf("ForBoard: %v", err)
	}
	if p.Board != "imx2cc" {
		t.Errorf("board = %q", p.Board)
	}
	if len(p.Steps) != 10 {
		t.Errorf("imx2cc steps = %d, want 10", len(p.Steps))
	}
	if p.SupplyVolts != 5.0 {
		t.Errorf("supply = %v, want 5.0", p.SupplyVolts)
	}
	first := p.Steps[0]
	if first.Label != "VDD_2V9" || first.Pin != 0 || first.ScopeChannel != 1 {
		t.Errorf("first step = %+v", first)
	}
	if first.LowerLimit != 0.42 || first.UpperLimit != 0.82 || first.Target != 0.62 {
		t.Errorf("first step limits = %+v", first)
	}

	// Board name comparison is case-insensitive; barcodes come in upper case.
	if _, err := ForBoard("IMX2CC", "0020"); err != nil {
		t.Errorf("upper-case lookup failed: %v", err)
	}
}

func TestForBoardUnknown(t *testing.T) {
	_, err := ForBoard("nonexistent", "0001")
	var noPlan *ErrNoPlan
	if !errors.As(err, &noPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
	if noPlan.Revision != "" {
		t.Errorf("unknown board should not report a revision, got %q", noPlan.Revision)
	}
}

func TestForBoardWrongRevision(t *testing.T) {
	_, err := ForBoard("imx2cc", "9999")
	var noPlan *ErrNoPlan
	if !errors.As(err, &noPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
	if noPlan.Board != "imx2cc" || noPlan.Revision != "9999" {
		t.Errorf("ErrNoPlan = %+v", noPlan)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proto.yaml")
	content := `board: proto
supply_volts: 5.0
steps:
  - {number: 1, label: RAIL_A, pin: 0, scope_channel: 1, samples: 100, settle_ms: 10, target: 0.5, lower_limit: 0.4, upper_limit: 0.6}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if p.Board != "proto" || len(p.Steps) != 1 {
		t.Errorf("plan = %+v", p)
	}
	// No revision list means the plan covers every revision.
	if !p.AppliesTo("anything") {
		t.Error("plan without revisions should apply to any revision")
	}
}

func TestValidateRejectsBadPlans(t *testing.T) {
	good := model.TestStep{
		Number: 1, Label: "X", Pin: 0, ScopeChannel: 1,
		Samples: 100, Target: 0.5, LowerLimit: 0.4, UpperLimit: 0.6,
	}
	cases := []struct {
		name   string
		mutate func(*model.TestPlan)
	}{
		{"no board", func(p *model.TestPlan) { p.Board = "" }},
		{"no steps", func(p *model.TestPlan) { p.Steps = nil }},
		{"bad supply", func(p *model.TestPlan) { p.SupplyVolts = 0 }},
		{"bad pin", func(p *model.TestPlan) { p.Steps[0].Pin = 16 }},
		{"bad channel", func(p *model.TestPlan) { p.Steps[0].ScopeChannel = 3 }},
		{"inverted limits", func(p *model.TestPlan) { p.Steps[0].LowerLimit = 0.7 }},
		{"target outside limits", func(p *model.TestPlan) { p.Steps[0].Target = 0.9 }},
		{"duplicate test numbers", func(p *model.TestPlan) {
			p.Steps = append(p.Steps, good)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := model.TestPlan{Board: "x", SupplyVolts: 5, Steps: []model.TestStep{good}}
			tc.mutate(&p)
			if err := Validate(p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
