// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package sync pushes finished test reports from the station database to
// the central results origin, either by committing to a git repository or
// by uploading over SFTP. Reports are marked synced only after the push
// succeeds, so a dead network just leaves them queued for the next run.
package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron"

	"github.com/mesa-nmanteufel/testhub/internal/config"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/export"
	"github.com/mesa-nmanteufel/testhub/internal/logging"
	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// Sync modes.
const (
	ModeGit  = "git"
	ModeSFTP = "sftp"
	ModeOff  = "off"
)

// Syncer pushes unsynced reports to the configured origin.
type Syncer struct {
	cfg config.SyncConfig
}

// New creates a Syncer for the given configuration.
func New(cfg config.SyncConfig) *Syncer {
	return &Syncer{cfg: cfg}
}

// SyncOnce pushes all unsynced reports and returns how many were pushed.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	switch s.cfg.Mode {
	case ModeGit, ModeSFTP:
	case ModeOff, "":
		return 0, fmt.Errorf("sync is disabled (sync.mode is %q)", s.cfg.Mode)
	default:
		return 0, fmt.Errorf("unknown sync mode %q", s.cfg.Mode)
	}

	reports, err := db.GetUnsyncedReports()
	if err != nil {
		return 0, fmt.Errorf("failed to load unsynced reports: %w", err)
	}
	if len(reports) == 0 {
		logging.Debugf("sync: nothing to push")
		return 0, nil
	}

	switch s.cfg.Mode {
	case ModeGit:
		return s.syncGit(ctx, reports)
	default:
		return s.syncSFTP(ctx, reports)
	}
}

// syncGit writes each report into the working tree and pushes one commit
// per report, message "<barcode>--<status>", matching the results repo's
// existing history.
func (s *Syncer) syncGit(ctx context.Context, reports []model.TestReport) (int, error) {
	if s.cfg.Dir == "" {
		return 0, fmt.Errorf("sync.dir is not configured")
	}
	repo := &gitRepo{dir: s.cfg.Dir}
	if err := repo.Pull(ctx); err != nil {
		logging.Warnf("sync: pull failed, pushing anyway: %v", err)
	}

	// Oldest first so the commit history follows test order.
	pushed := 0
	for i := len(reports) - 1; i >= 0; i-- {
		r := reports[i]
		if err := s.writeBoardDocument(s.cfg.Dir, r.Board); err != nil {
			return pushed, err
		}
		msg := fmt.Sprintf("%s--%s", r.Barcode, r.OverallStatus)
		if err := repo.CommitPush(ctx, msg); err != nil {
			return pushed, err
		}
		if err := db.MarkReportSynced(r.ID); err != nil {
			return pushed, fmt.Errorf("failed to mark report %s synced: %w", r.ID, err)
		}
		pushed++
	}
	return pushed, nil
}

// syncSFTP uploads the complete board document for every board with pending
// reports, then marks them synced.
func (s *Syncer) syncSFTP(ctx context.Context, reports []model.TestReport) (int, error) {
	user, host, err := splitRemote(s.cfg.Remote)
	if err != nil {
		return 0, err
	}
	up, err := NewUploader(host, user, s.cfg.KeyFile)
	if err != nil {
		return 0, err
	}
	defer up.Close()

	// One upload per board, not per report.
	byBoard := make(map[model.Board][]model.TestReport)
	for _, r := range reports {
		byBoard[r.Board] = append(byBoard[r.Board], r)
	}

	pushed := 0
	for board, pending := range byBoard {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}
		content, err := s.boardDocument(board)
		if err != nil {
			return pushed, err
		}
		if err := up.Upload(s.cfg.RemotePath, export.FileName(board), content); err != nil {
			return pushed, fmt.Errorf("failed to upload %s: %w", board, err)
		}
		for _, r := range pending {
			if err := db.MarkReportSynced(r.ID); err != nil {
				return pushed, fmt.Errorf("failed to mark report %s synced: %w", r.ID, err)
			}
			pushed++
		}
		logging.Infof("sync: uploaded %s", export.FileName(board))
	}
	return pushed, nil
}

// SyncBoardMessages pushes the board's document after a red tag was added,
// with the commit message the results repo has always used for those.
// A no-op unless sync mode is git.
func (s *Syncer) SyncBoardMessages(ctx context.Context, board model.Board) error {
	if s.cfg.Mode != ModeGit {
		return nil
	}
	if s.cfg.Dir == "" {
		return fmt.Errorf("sync.dir is not configured")
	}
	repo := &gitRepo{dir: s.cfg.Dir}
	if err := repo.Pull(ctx); err != nil {
		logging.Warnf("sync: pull failed, pushing anyway: %v", err)
	}
	if err := s.writeBoardDocument(s.cfg.Dir, board); err != nil {
		return err
	}
	return repo.CommitPush(ctx, "Added red tag message")
}

// writeBoardDocument regenerates the board's JSON file in dir from the
// database, so the file always reflects the full history.
func (s *Syncer) writeBoardDocument(dir string, board model.Board) error {
	reports, redTags, procMsgs, err := boardData(board)
	if err != nil {
		return err
	}
	_, err = export.WriteBoardFile(dir, board, reports, redTags, procMsgs)
	return err
}

// boardDocument renders the board's JSON document to bytes for upload.
func (s *Syncer) boardDocument(board model.Board) ([]byte, error) {
	reports, redTags, procMsgs, err := boardData(board)
	if err != nil {
		return nil, err
	}
	return export.MarshalBoardFile(reports, redTags, procMsgs)
}

func boardData(board model.Board) ([]model.TestReport, []model.RedTagMessage, []model.ProcessMessage, error) {
	reports, err := db.GetReportsForBoard(board)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load reports for %s: %w", board, err)
	}
	redTags, err := db.GetRedTagMessages(board.String())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load red tag messages for %s: %w", board, err)
	}
	procMsgs, err := db.GetProcessMessages(board.String())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load process messages for %s: %w", board, err)
	}
	return reports, redTags, procMsgs, nil
}

// splitRemote parses "user@host[:port]".
func splitRemote(remote string) (user, host string, err error) {
	user, host, ok := strings.Cut(remote, "@")
	if !ok || user == "" || host == "" {
		return "", "", fmt.Errorf("sync.remote must be user@host[:port], got %q", remote)
	}
	return user, host, nil
}

// Watch runs SyncOnce on the configured cron schedule until the context is
// cancelled. An initial sync runs immediately.
func (s *Syncer) Watch(ctx context.Context) error {
	schedule := s.cfg.Schedule
	if schedule == "" {
		schedule = "@every 10m"
	}

	if n, err := s.SyncOnce(ctx); err != nil {
		logging.Warnf("sync: initial run failed: %v", err)
	} else if n > 0 {
		logging.Infof("sync: pushed %d report(s)", n)
	}

	c := cron.New()
	if err := c.AddFunc(schedule, func() {
		if n, err := s.SyncOnce(ctx); err != nil {
			logging.Warnf("sync: %v", err)
		} else if n > 0 {
			logging.Infof("sync: pushed %d report(s)", n)
		}
	}); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return ctx.Err()
}
