// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package testplan loads and validates the bench procedures. Plans ship
// embedded in the binary so a station never runs with a stale or edited
// copy; external plan directories can supplement them for bring-up work.
package testplan

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

//go:embed plans/*.yaml
var embeddedPlans embed.FS

// ErrNoPlan is returned when no plan covers the requested board.
type ErrNoPlan struct {
	Board    string
	Revision string
}

func (e *ErrNoPlan) Error() string {
	if e.Revision == "" {
		return fmt.Sprintf("no test plan for board %q", e.Board)
	}
	return fmt.Sprintf("no test plan for board %q revision %q", e.Board, e.Revision)
}

// All returns every embedded plan, sorted by board name.
func All() ([]model.TestPlan, error) {
	entries, err := fs.ReadDir(embeddedPlans, "plans")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded plans: %w", err)
	}
	var plans []model.TestPlan
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := embeddedPlans.ReadFile("plans/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read plan %s: %w", e.Name(), err)
		}
		p, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("invalid plan %s: %w", e.Name(), err)
		}
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Board < plans[j].Board })
	return plans, nil
}

// ForBoard finds the plan covering the given board name and revision.
// Board names compare case-insensitively since names are lowercased during
// barcode parsing anyway.
func ForBoard(name, revision string) (model.TestPlan, error) {
	plans, err := All()
	if err != nil {
		return model.TestPlan{}, err
	}
	name = strings.ToLower(name)
	var nameMatched bool
	for _, p := range plans {
		if strings.ToLower(p.Board) != name {
			continue
		}
		nameMatched = true
		if p.AppliesTo(revision) {
			return p, nil
		}
	}
	if nameMatched {
		return model.TestPlan{}, &ErrNoPlan{Board: name, Revision: revision}
	}
	return model.TestPlan{}, &ErrNoPlan{Board: name}
}

// LoadFile reads and validates a plan from an external YAML file. Used for
// fixture bring-up before a plan is baked into a release.
func LoadFile(path string) (model.TestPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.TestPlan{}, fmt.Errorf("failed to read plan file: %w", err)
	}
	p, err := parse(data)
	if err != nil {
		return model.TestPlan{}, fmt.Errorf("invalid plan %s: %w", filepath.Base(path), err)
	}
	return p, nil
}

func parse(data []byte) (model.TestPlan, error) {
	var p model.TestPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.TestPlan{}, err
	}
	if err := Validate(p); err != nil {
		return model.TestPlan{}, err
	}
	return p, nil
}

// Validate checks a plan for the mistakes that slip into hand-edited YAML.
func Validate(p model.TestPlan) error {
	if p.Board == "" {
		return fmt.Errorf("plan has no board name")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan for %s has no steps", p.Board)
	}
	if p.SupplyVolts <= 0 {
		return fmt.Errorf("plan for %s has invalid supply voltage %v", p.Board, p.SupplyVolts)
	}
	seen := make(map[int]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Number <= 0 {
			return fmt.Errorf("plan for %s: step %q has invalid test number %d", p.Board, s.Label, s.Number)
		}
		if seen[s.Number] {
			return fmt.Errorf("plan for %s: duplicate test number %d", p.Board, s.Number)
		}
		seen[s.Number] = true
		if s.Label == "" {
			return fmt.Errorf("plan for %s: step %d has no label", p.Board, s.Number)
		}
		if s.Pin < 0 || s.Pin > 15 {
			return fmt.Errorf("plan for %s: step %d pin %d out of range", p.Board, s.Number, s.Pin)
		}
		if s.ScopeChannel != 1 && s.ScopeChannel != 2 {
			return fmt.Errorf("plan for %s: step %d scope channel %d out of range", p.Board, s.Number, s.ScopeChannel)
		}
		if s.Samples <= 0 {
			return fmt.Errorf("plan for %s: step %d has invalid sample count %d", p.Board, s.Number, s.Samples)
		}
		if s.LowerLimit > s.UpperLimit {
			return fmt.Errorf("plan for %s: step %d limits inverted (%v > %v)", p.Board, s.Number, s.LowerLimit, s.UpperLimit)
		}
		if s.Target < s.LowerLimit || s.Target > s.UpperLimit {
			return fmt.Errorf("plan for %s: step %d target %v outside limits", p.Board, s.Number, s.Target)
		}
	}
	return nil
}
