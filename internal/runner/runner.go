// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package runner executes a test plan against a board on the fixture and
// produces the test report.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesa-nmanteufel/testhub/internal/instrument"
	"github.com/mesa-nmanteufel/testhub/internal/logging"
	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// Progress is called after each step completes, so the UI can show results
// as they come in.
type Progress func(step model.TestStep, result model.TestResult)

// Runner executes test plans on one instrument.
type Runner struct {
	inst     instrument.Instrument
	station  string
	progress Progress
}

// New creates a Runner. station is recorded in every report it produces.
func New(inst instrument.Instrument, station string) *Runner {
	return &Runner{inst: inst, station: station}
}

// OnProgress registers a step completion callback.
func (r *Runner) OnProgress(fn Progress) {
	r.progress = fn
}

// Run executes the plan against the board and returns the finished report.
// The board must match the plan; the check runs before any hardware is
// touched so a mis-scanned barcode never energizes the fixture.
func (r *Runner) Run(ctx context.Context, plan model.TestPlan, board model.Board) (*model.TestReport, error) {
	if !strings.EqualFold(board.Name, plan.Board) {
		return nil, fmt.Errorf("board name %q does not match the plan target %q", board.Name, plan.Board)
	}
	if !plan.AppliesTo(board.Revision) {
		return nil, fmt.Errorf("board revision %q is not covered by the %s plan", board.Revision, plan.Board)
	}

	if err := r.inst.Configure(ctx, plan.SupplyVolts); err != nil {
		return nil, fmt.Errorf("failed to configure instrument: %w", err)
	}

	report := &model.TestReport{
		ID:            uuid.NewString(),
		Timestamp:     model.Now(),
		Barcode:       board.String(),
		Board:         board,
		Station:       r.station,
		OverallStatus: model.StatusPass,
	}

	for _, step := range plan.Steps {
		result, err := r.runStep(ctx, step)
		if err != nil {
			// Leave the fixture de-energized on the way out.
			_ = r.inst.SetPin(step.Pin, false)
			return nil, fmt.Errorf("test %d (%s): %w", step.Number, step.Label, err)
		}
		report.Results = append(report.Results, result)
		if result.Conclusion == model.StatusFail {
			report.OverallStatus = model.StatusFail
		}
		if r.progress != nil {
			r.progress(step, result)
		}
	}

	logging.Infof("end of test %s: %s", report.Barcode, report.OverallStatus)
	return report, nil
}

// runStep measures one test point: drive the rail, wait for it to settle,
// average the scope reading, compare against limits.
func (r *Runner) runStep(ctx context.Context, step model.TestStep) (model.TestResult, error) {
	if err := r.inst.SetPin(step.Pin, true); err != nil {
		return model.TestResult{}, fmt.Errorf("failed to drive pin %d: %w", step.Pin, err)
	}
	if err := settle(ctx, time.Duration(step.SettleMillis)*time.Millisecond); err != nil {
		return model.TestResult{}, err
	}

	samples, err := r.inst.Acquire(ctx, step.ScopeChannel, step.Samples)
	if err != nil {
		return model.TestResult{}, err
	}
	measured := Average(samples)

	conclusion := model.StatusFail
	if step.LowerLimit <= measured && measured <= step.UpperLimit {
		conclusion = model.StatusPass
	}
	logging.Infof("test %d: %s: %.3f V %s", step.Number, step.Label, measured, conclusion)

	if err := r.inst.SetPin(step.Pin, false); err != nil {
		return model.TestResult{}, fmt.Errorf("failed to release pin %d: %w", step.Pin, err)
	}

	return model.TestResult{
		TestNumber:    step.Number,
		Description:   step.Label,
		TargetValue:   step.Target,
		LowerLimit:    step.LowerLimit,
		UpperLimit:    step.UpperLimit,
		MeasuredValue: measured,
		Conclusion:    conclusion,
	}, nil
}

// settle waits for the rail to stabilize, honoring cancellation.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Average returns the mean of the samples truncated to three decimals.
// Truncation, not rounding: a rail measuring 0.8199 V reports 0.819, so a
// report never shows a value closer to the limit than what was measured.
func Average(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return truncate(sum/float64(len(samples)), 3)
}

func truncate(value float64, places int) float64 {
	factor := 1.0
	for i := 0; i < places; i++ {
		factor *= 10
	}
	return float64(int64(value*factor)) / factor
}
