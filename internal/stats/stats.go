// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package stats computes the yield numbers behind the Yields view: pass
// rates and failure Paretos over a filtered set of reports.
package stats

import (
	"sort"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// Yield computes pass/fail counts over the reports.
func Yield(reports []model.TestReport) model.YieldStats {
	var s model.YieldStats
	for _, r := range reports {
		s.Tested++
		if r.OverallStatus == model.StatusPass {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	if s.Tested > 0 {
		s.Percent = float64(s.Passed) / float64(s.Tested) * 100
	}
	return s
}

// FailurePareto counts how often each test point failed across the reports,
// most frequent first. Ties order alphabetically so the output is stable.
func FailurePareto(reports []model.TestReport) []model.FailureModeCount {
	counts := make(map[string]int)
	for _, r := range reports {
		for _, res := range r.Failures() {
			counts[res.Description]++
		}
	}
	out := make([]model.FailureModeCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, model.FailureModeCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// FirstPassYield computes the yield counting only each board's first run.
// Reports must be in the store's newest-first order; the oldest run per
// board is the first pass.
func FirstPassYield(reports []model.TestReport) model.YieldStats {
	firstRun := make(map[string]model.TestReport)
	for _, r := range reports {
		// Later map writes win; with newest-first input the oldest
		// report for each barcode survives.
		firstRun[r.Barcode] = r
	}
	var s model.YieldStats
	for _, r := range firstRun {
		s.Tested++
		if r.OverallStatus == model.StatusPass {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	if s.Tested > 0 {
		s.Percent = float64(s.Passed) / float64(s.Tested) * 100
	}
	return s
}
