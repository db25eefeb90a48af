// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package stats

import (
	"testing"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

func report(barcode, status string, failedLabels ...string) model.TestReport {
	r := model.TestReport{Barcode: barcode, OverallStatus: status}
	for i, label := range failedLabels {
		r.Results = append(r.Results, model.TestResult{
			TestNumber:  i + 1,
			Description: label,
			Conclusion:  model.StatusFail,
		})
	}
	return r
}

func TestYield(t *testing.T) {
	reports := []model.TestReport{
		report("a", model.StatusPass),
		report("b", model.StatusPass),
		report("c", model.StatusFail, "VDD_1V8"),
		report("d", model.StatusPass),
	}
	s := Yield(reports)
	if s.Tested != 4 || s.Passed != 3 || s.Failed != 1 {
		t.Errorf("Yield = %+v", s)
	}
	if s.Percent != 75 {
		t.Errorf("Percent = %v, want 75", s.Percent)
	}
}

func TestYieldEmpty(t *testing.T) {
	s := Yield(nil)
	if s.Tested != 0 || s.Percent != 0 {
		t.Errorf("Yield(nil) = %+v", s)
	}
}

func TestFailurePareto(t *testing.T) {
	reports := []model.TestReport{
		report("a", model.StatusFail, "VDD_1V8", "SDA"),
		report("b", model.StatusFail, "VDD_1V8"),
		report("c", model.StatusFail, "SCL"),
		report("d", model.StatusPass),
	}
	pareto := FailurePareto(reports)
	if len(pareto) != 3 {
		t.Fatalf("pareto rows = %d, want 3", len(pareto))
	}
	if pareto[0].Label != "VDD_1V8" || pareto[0].Count != 2 {
		t.Errorf("top failure = %+v", pareto[0])
	}
	// Ties break alphabetically.
	if pareto[1].Label != "SCL" || pareto[2].Label != "SDA" {
		t.Errorf("tie order = %s, %s", pareto[1].Label, pareto[2].Label)
	}
}

func TestFirstPassYield(t *testing.T) {
	// Newest first, as the store returns them: board "a" failed its first
	// run and passed the retest.
	reports := []model.TestReport{
		{Barcode: "a", Timestamp: "20260102_120000", OverallStatus: model.StatusPass},
		{Barcode: "a", Timestamp: "20260101_120000", OverallStatus: model.StatusFail},
		{Barcode: "b", Timestamp: "20260101_110000", OverallStatus: model.StatusPass},
	}
	s := FirstPassYield(reports)
	if s.Tested != 2 {
		t.Fatalf("Tested = %d, want 2", s.Tested)
	}
	if s.Passed != 1 || s.Failed != 1 {
		t.Errorf("first pass yield = %+v", s)
	}
	if s.Percent != 50 {
		t.Errorf("Percent = %v, want 50", s.Percent)
	}
}
