// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package sync

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mesa-nmanteufel/testhub/internal/config"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/model"
)

func initTestDB(t *testing.T) {
	t.Helper()
	dsn := "file:test_sync_" + t.Name() + "?mode=memory&cache=shared"
	if err := db.InitDB("sqlite", dsn); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
}

func TestSyncOnceDisabled(t *testing.T) {
	for _, mode := range []string{"", "off"} {
		s := New(config.SyncConfig{Mode: mode})
		if _, err := s.SyncOnce(context.Background()); err == nil {
			t.Errorf("mode %q: expected error", mode)
		}
	}
}

func TestSyncOnceUnknownMode(t *testing.T) {
	s := New(config.SyncConfig{Mode: "carrier-pigeon"})
	if _, err := s.SyncOnce(context.Background()); err == nil {
		t.Error("unknown mode should be rejected")
	}
}

func TestSyncOnceNothingPending(t *testing.T) {
	initTestDB(t)
	s := New(config.SyncConfig{Mode: ModeGit, Dir: t.TempDir()})
	n, err := s.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if n != 0 {
		t.Errorf("pushed = %d, want 0", n)
	}
}

func TestSplitRemote(t *testing.T) {
	user, host, err := splitRemote("station@results.example.com:2022")
	if err != nil {
		t.Fatalf("splitRemote: %v", err)
	}
	if user != "station" || host != "results.example.com:2022" {
		t.Errorf("got %q @ %q", user, host)
	}

	for _, bad := range []string{"", "nohost@", "@nouser", "justahost"} {
		if _, _, err := splitRemote(bad); err == nil {
			t.Errorf("splitRemote(%q) should fail", bad)
		}
	}
}

// TestSyncGitEndToEnd runs a real git push against a local bare repository.
func TestSyncGitEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	initTestDB(t)
	ctx := context.Background()

	origin := filepath.Join(t.TempDir(), "origin.git")
	work := filepath.Join(t.TempDir(), "work")
	mustGit(t, "", "init", "--bare", origin)
	mustGit(t, "", "clone", origin, work)
	mustGit(t, work, "config", "user.email", "station@example.com")
	mustGit(t, work, "config", "user.name", "Test Station")
	// An empty clone has no upstream yet; seed one commit.
	mustGit(t, work, "commit", "--allow-empty", "-m", "init")
	mustGit(t, work, "push", "--set-upstream", "origin", "HEAD")

	board := model.Board{Name: "imx2cc", Revision: "0020", Variant: "A1", Serial: "000123"}
	report := &model.TestReport{
		Barcode:       board.String(),
		Board:         board,
		OverallStatus: model.StatusFail,
		Results: []model.TestResult{
			{TestNumber: 1, Description: "VDD_2V9", Conclusion: model.StatusFail},
		},
	}
	if err := db.SaveReport(report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	s := New(config.SyncConfig{Mode: ModeGit, Dir: work})
	n, err := s.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("pushed = %d, want 1", n)
	}

	// The commit message carries the barcode and status.
	out := mustGit(t, work, "log", "-1", "--format=%s")
	want := board.String() + "--Fail"
	if strings.TrimSpace(out) != want {
		t.Errorf("commit message = %q, want %q", strings.TrimSpace(out), want)
	}

	// The report is now marked synced.
	unsynced, err := db.GetUnsyncedReports()
	if err != nil {
		t.Fatalf("GetUnsyncedReports: %v", err)
	}
	if len(unsynced) != 0 {
		t.Errorf("still unsynced: %d", len(unsynced))
	}

	// A second sync has nothing to do and must not fail.
	if n, err := s.SyncOnce(ctx); err != nil || n != 0 {
		t.Errorf("second sync: n=%d err=%v", n, err)
	}
}

func TestSyncBoardMessagesGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	initTestDB(t)
	ctx := context.Background()

	origin := filepath.Join(t.TempDir(), "origin.git")
	work := filepath.Join(t.TempDir(), "work")
	mustGit(t, "", "init", "--bare", origin)
	mustGit(t, "", "clone", origin, work)
	mustGit(t, work, "config", "user.email", "station@example.com")
	mustGit(t, work, "config", "user.name", "Test Station")
	mustGit(t, work, "commit", "--allow-empty", "-m", "init")
	mustGit(t, work, "push", "--set-upstream", "origin", "HEAD")

	board := model.Board{Name: "imx2cc", Revision: "0020", Variant: "A1", Serial: "000124"}
	if err := db.AddRedTagMessage(&model.RedTagMessage{
		Barcode: board.String(),
		Author:  "op1",
		Message: "solder bridge on U7, reworked",
	}); err != nil {
		t.Fatalf("AddRedTagMessage: %v", err)
	}

	s := New(config.SyncConfig{Mode: ModeGit, Dir: work})
	if err := s.SyncBoardMessages(ctx, board); err != nil {
		t.Fatalf("SyncBoardMessages: %v", err)
	}

	out := mustGit(t, work, "log", "-1", "--format=%s")
	if got := strings.TrimSpace(out); got != "Added red tag message" {
		t.Errorf("commit message = %q, want %q", got, "Added red tag message")
	}

	// Anything but git mode is a no-op.
	if err := New(config.SyncConfig{Mode: ModeOff}).SyncBoardMessages(ctx, board); err != nil {
		t.Errorf("off mode: %v", err)
	}
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return string(out)
}
