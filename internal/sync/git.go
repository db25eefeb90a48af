// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package sync

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mesa-nmanteufel/testhub/internal/logging"
)

// gitRepo drives the system git binary against the reports working tree.
// The factory results repository stays an ordinary git repo so existing
// review tooling keeps working.
type gitRepo struct {
	dir string
}

func (g *gitRepo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	logging.Debugf("git %s: %s", strings.Join(args, " "), output)
	if err != nil {
		return output, fmt.Errorf("git %s failed: %s: %w", args[0], output, err)
	}
	return output, nil
}

// CommitPush stages everything, commits with the given message and pushes
// to origin. A clean tree is not an error; there is simply nothing to push.
func (g *gitRepo) CommitPush(ctx context.Context, message string) error {
	if _, err := g.run(ctx, "add", "--all"); err != nil {
		return err
	}
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return err
	}
	if status == "" {
		logging.Debugf("git: nothing to commit in %s", g.dir)
		return nil
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return err
	}
	if _, err := g.run(ctx, "push", "origin"); err != nil {
		return err
	}
	logging.Infof("changes pushed to origin: %s", message)
	return nil
}

// Pull brings the working tree up to date with origin.
func (g *gitRepo) Pull(ctx context.Context) error {
	_, err := g.run(ctx, "pull", "--ff-only")
	return err
}
