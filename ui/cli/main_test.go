// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/i18n"
	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// setupTestStation initializes an in-memory SQLite database and writes a
// station config file pointing at it. It returns the config path to pass
// via --config.
func setupTestStation(t *testing.T) string {
	t.Helper()

	viper.Reset()
	i18n.Init("en")

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	if err := db.InitDB("sqlite", dsn); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}

	cfgPath := filepath.Join(t.TempDir(), "testhub.yaml")
	cfg := fmt.Sprintf(`database:
    type: sqlite
    dsn: %q
station: bench-test
language: en
instrument:
    backend: sim
    supply_volts: 0
sync:
    mode: "off"
`, dsn)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return cfgPath
}

// executeCommand runs a fresh root command with the given arguments and
// captures everything written to stdout and stderr.
func executeCommand(t *testing.T, args ...string) string {
	t.Helper()

	oldOut := os.Stdout
	oldErr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w
	log.SetOutput(w)
	defer log.SetOutput(os.Stderr)
	defer func() {
		os.Stdout = oldOut
		os.Stderr = oldErr
	}()

	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		w.Close()
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		t.Fatalf("command execution failed: %v\noutput:\n%s", err, buf.String())
	}

	w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read command output: %v", err)
	}
	return buf.String()
}

func seedCLIReport(t *testing.T, serial, status string) {
	t.Helper()
	r := model.TestReport{
		Barcode:       "imx2cc-0020-A1-" + serial,
		Board:         model.Board{Name: "imx2cc", Revision: "0020", Variant: "A1", Serial: serial},
		Station:       "bench-test",
		OverallStatus: status,
		Results: []model.TestResult{
			{TestNumber: 1, Description: "VDD_2V9", TargetValue: 0.62, LowerLimit: 0.42, UpperLimit: 0.82, MeasuredValue: 0.62, Conclusion: model.StatusPass},
		},
	}
	if status == model.StatusFail {
		r.Results[0].MeasuredValue = 0.1
		r.Results[0].Conclusion = model.StatusFail
	}
	if err := db.SaveReport(&r); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
}

func TestBoardsCmdListsEmbeddedPlans(t *testing.T) {
	cfgPath := setupTestStation(t)

	output := executeCommand(t, "boards", "--config", cfgPath)
	for _, plan := range []string{"imx2cc", "cam_ctrlg4", "sens_snimx565"} {
		if !strings.Contains(output, plan) {
			t.Errorf("expected boards output to list plan %q, got:\n%s", plan, output)
		}
	}
	if !strings.Contains(output, "No boards tested yet.") {
		t.Errorf("expected empty tested-boards notice, got:\n%s", output)
	}
}

func TestFirstRunWritesDefaultConfig(t *testing.T) {
	setupTestStation(t)

	// No --config and an empty config home plus empty working directory,
	// so no config file is found anywhere.
	confHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", confHome)
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()

	executeCommand(t, "boards")

	written := filepath.Join(confHome, "testhub", "testhub.yaml")
	data, err := os.ReadFile(written)
	if err != nil {
		t.Fatalf("expected a default config at %s: %v", written, err)
	}
	if !strings.Contains(string(data), "database:") {
		t.Errorf("default config is missing the database section:\n%s", data)
	}
}

func TestRunCmdSimStoresReport(t *testing.T) {
	cfgPath := setupTestStation(t)

	// The sim instrument reads near 0 V on every pin, so every limit check
	// fails and the board concludes Fail.
	output := executeCommand(t, "run", "imx2cc-0020-A1-000042", "--no-sync", "--config", cfgPath)
	if !strings.Contains(output, "END OF TEST: Fail") {
		t.Errorf("expected failing end of test, got:\n%s", output)
	}
	if !strings.Contains(output, "Test# 1:") {
		t.Errorf("expected per-step progress lines, got:\n%s", output)
	}

	reports, err := db.GetReportsForBoard(model.Board{Name: "imx2cc", Revision: "0020", Variant: "A1", Serial: "000042"})
	if err != nil {
		t.Fatalf("GetReportsForBoard: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(reports))
	}
	if reports[0].OverallStatus != model.StatusFail {
		t.Errorf("expected stored status Fail, got %q", reports[0].OverallStatus)
	}
	if len(reports[0].Results) != 10 {
		t.Errorf("expected 10 step results, got %d", len(reports[0].Results))
	}
}

func TestRunCmdRejectsUnknownBoard(t *testing.T) {
	cfgPath := setupTestStation(t)

	root := NewRootCmd()
	root.SetArgs([]string{"run", "nosuchboard-0001-A1-000001", "--no-sync", "--config", cfgPath})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for a board without a plan")
	}
}

func TestReportCmdShowsHistory(t *testing.T) {
	cfgPath := setupTestStation(t)
	seedCLIReport(t, "000123", model.StatusPass)

	output := executeCommand(t, "report", "imx2cc-0020-A1-000123", "--config", cfgPath)
	if !strings.Contains(output, "imx2cc-0020-A1-000123") {
		t.Errorf("expected barcode in report output, got:\n%s", output)
	}
	if !strings.Contains(output, "VDD_2V9") {
		t.Errorf("expected step description in report output, got:\n%s", output)
	}
	if !strings.Contains(output, "Pass") {
		t.Errorf("expected conclusion in report output, got:\n%s", output)
	}
}

func TestYieldCmd(t *testing.T) {
	cfgPath := setupTestStation(t)
	seedCLIReport(t, "000001", model.StatusPass)
	seedCLIReport(t, "000002", model.StatusPass)
	seedCLIReport(t, "000003", model.StatusFail)

	output := executeCommand(t, "yield", "--board", "imx2cc", "--pareto", "--config", cfgPath)
	if !strings.Contains(output, "3 tested, 2 passed, 1 failed") {
		t.Errorf("unexpected yield summary:\n%s", output)
	}
	if !strings.Contains(output, "VDD_2V9") {
		t.Errorf("expected Pareto to name the failing test point:\n%s", output)
	}
}

func TestRedTagAddAndList(t *testing.T) {
	cfgPath := setupTestStation(t)

	output := executeCommand(t, "redtag", "add", "imx2cc-0020-A1-000042", "C14 lifted pad", "--author", "op1", "--config", cfgPath)
	if !strings.Contains(output, "added") {
		t.Errorf("expected add confirmation, got:\n%s", output)
	}

	output = executeCommand(t, "redtag", "list", "imx2cc-0020-A1-000042", "--config", cfgPath)
	if !strings.Contains(output, "C14 lifted pad") {
		t.Errorf("expected message in list output, got:\n%s", output)
	}
	if !strings.Contains(output, "op1") {
		t.Errorf("expected author in list output, got:\n%s", output)
	}
}

func TestExportCmdWritesBoardFile(t *testing.T) {
	cfgPath := setupTestStation(t)
	seedCLIReport(t, "000123", model.StatusPass)

	dir := t.TempDir()
	output := executeCommand(t, "export", "imx2cc-0020-A1-000123", dir, "--html", "--config", cfgPath)
	if !strings.Contains(output, "Wrote") {
		t.Errorf("expected write confirmation, got:\n%s", output)
	}

	jsonPath := filepath.Join(dir, "imx2cc-0020-A1-000123.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("expected board file at %s: %v", jsonPath, err)
	}
	if !strings.Contains(string(data), `"test_reports"`) {
		t.Errorf("expected test_reports key in board file, got:\n%s", data)
	}

	if _, err := os.Stat(filepath.Join(dir, "imx2cc-0020-A1-000123.html")); err != nil {
		t.Errorf("expected HTML file next to the JSON export: %v", err)
	}
}
