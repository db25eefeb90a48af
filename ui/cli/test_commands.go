// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// test_commands.go holds the bench-facing subcommands: running a plan
// against a board and inspecting what has been tested.

package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mesa-nmanteufel/testhub/internal/barcode"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/export"
	"github.com/mesa-nmanteufel/testhub/internal/instrument"
	"github.com/mesa-nmanteufel/testhub/internal/model"
	"github.com/mesa-nmanteufel/testhub/internal/runner"
	"github.com/mesa-nmanteufel/testhub/internal/stats"
	syncer "github.com/mesa-nmanteufel/testhub/internal/sync"
	"github.com/mesa-nmanteufel/testhub/internal/testplan"
)

// readBarcode takes the barcode from the argument list or prompts for a
// scan. The scanner acts as a keyboard, so reading a line covers both.
func readBarcode(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	fmt.Print("Please scan a barcode: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read barcode: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("no barcode scanned")
	}
	return line, nil
}

// parseBoard parses and validates a scanned barcode.
func parseBoard(code string) (model.Board, error) {
	board := barcode.Parse(code)
	if !barcode.Valid(board) {
		return board, fmt.Errorf("barcode %q did not parse into a usable board identity (got %s)", code, board)
	}
	return board, nil
}

var runCmd = &cobra.Command{
	Use:   "run [barcode]",
	Short: "Run the matching test plan against a board",
	Long: `Parses the board barcode, looks up the matching embedded test plan,
drives the fixture and stores the report. The barcode can be passed as an
argument or scanned at the prompt.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		code, err := readBarcode(args)
		if err != nil {
			return err
		}
		board, err := parseBoard(code)
		if err != nil {
			return err
		}

		var plan model.TestPlan
		if planFile, _ := cmd.Flags().GetString("plan"); planFile != "" {
			plan, err = testplan.LoadFile(planFile)
		} else {
			plan, err = testplan.ForBoard(board.Name, board.Revision)
		}
		if err != nil {
			return err
		}
		if appConfig.Instrument.SupplyVolts > 0 {
			// Bench override for fixtures wired to a different rail.
			plan.SupplyVolts = appConfig.Instrument.SupplyVolts
		}

		banner(fmt.Sprintf("Test Program: %s\nRevision: %s", plan.Board, plan.RevisionDate))
		fmt.Printf("BOARD: %s\nREV: %s\nVARIANT: %s\nSN: %s\n",
			board.Name, board.Revision, board.Variant, board.Serial)

		inst, err := instrument.New(appConfig.Instrument.Backend)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := inst.Close(); cerr != nil {
				log.Warnf("failed to close instrument: %v", cerr)
			}
		}()

		r := runner.New(inst, appConfig.Station)
		r.OnProgress(func(step model.TestStep, res model.TestResult) {
			fmt.Printf("Test# %d:\t%s: \t%.3f V \t%s\n",
				res.TestNumber, res.Description, res.MeasuredValue, res.Conclusion)
		})

		report, err := r.Run(cmd.Context(), plan, board)
		if err != nil {
			return err
		}
		if err := db.SaveReport(report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}

		fmt.Printf("END OF TEST: %s\n", report.OverallStatus)

		if noSync, _ := cmd.Flags().GetBool("no-sync"); !noSync && appConfig.Sync.Mode != "" && appConfig.Sync.Mode != syncer.ModeOff {
			if n, err := syncer.New(appConfig.Sync).SyncOnce(cmd.Context()); err != nil {
				log.Warnf("report stored locally but sync failed: %v", err)
			} else {
				log.Infof("synced %d report(s)", n)
			}
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:     "report <barcode>",
	Short:   "Show the stored reports for a board",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		board, err := parseBoard(args[0])
		if err != nil {
			return err
		}
		reports, err := db.GetReportsForBoard(board)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Printf("No reports found for %s.\n", board)
			return nil
		}
		for _, r := range reports {
			fmt.Printf("\n%s  %s  %s\n", r.Timestamp, r.Barcode, r.OverallStatus)
			for _, res := range r.Results {
				fmt.Printf("  Test# %d:\t%s: \t%.3f V \t[%.3f .. %.3f] \t%s\n",
					res.TestNumber, res.Description, res.MeasuredValue,
					res.LowerLimit, res.UpperLimit, res.Conclusion)
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:     "export <barcode> [output-dir]",
	Short:   "Write a board's report file (JSON, optionally HTML)",
	Args:    cobra.RangeArgs(1, 2),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		board, err := parseBoard(args[0])
		if err != nil {
			return err
		}
		dir := "."
		if len(args) > 1 {
			dir = args[1]
		}

		reports, err := db.GetReportsForBoard(board)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			return fmt.Errorf("no reports found for %s", board)
		}
		redTags, err := db.GetRedTagMessages(board.String())
		if err != nil {
			return err
		}
		procMsgs, err := db.GetProcessMessages(board.String())
		if err != nil {
			return err
		}

		path, err := export.WriteBoardFile(dir, board, reports, redTags, procMsgs)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)

		if html, _ := cmd.Flags().GetBool("html"); html {
			doc, err := export.ReportsHTML(reports)
			if err != nil {
				return err
			}
			htmlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
			if err := os.WriteFile(htmlPath, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("failed to write HTML file: %w", err)
			}
			fmt.Printf("Wrote %s\n", htmlPath)
		}
		return nil
	},
}

var boardsCmd = &cobra.Command{
	Use:     "boards",
	Short:   "List embedded test plans and boards with stored reports",
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		plans, err := testplan.All()
		if err != nil {
			return err
		}
		fmt.Println("Test plans:")
		for _, p := range plans {
			revs := "all revisions"
			if len(p.Revisions) > 0 {
				revs = "rev " + strings.Join(p.Revisions, ", ")
			}
			fmt.Printf("  %s (%s, %d steps)\n", p.Board, revs, len(p.Steps))
		}

		names, err := db.ListBoardNames()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("\nNo boards tested yet.")
			return nil
		}
		fmt.Println("\nTested boards:")
		for _, name := range names {
			revs, err := db.ListRevisions(name)
			if err != nil {
				return err
			}
			fmt.Printf("  %s (rev %s)\n", name, strings.Join(revs, ", "))
		}
		return nil
	},
}

var yieldCmd = &cobra.Command{
	Use:     "yield",
	Short:   "Show yield statistics over stored reports",
	Long:    `Computes pass/fail yield over the stored reports, optionally narrowed by board, revision, variant and serial range, with a failure Pareto on request.`,
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		filter := model.ReportFilter{}
		filter.Board, _ = cmd.Flags().GetString("board")
		filter.Revision, _ = cmd.Flags().GetString("revision")
		filter.Variant, _ = cmd.Flags().GetString("variant")
		filter.SerialFrom, _ = cmd.Flags().GetString("serial-from")
		filter.SerialTo, _ = cmd.Flags().GetString("serial-to")

		reports, err := db.GetReports(filter)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("No reports match the filter.")
			return nil
		}

		var s model.YieldStats
		if firstPass, _ := cmd.Flags().GetBool("first-pass"); firstPass {
			s = stats.FirstPassYield(reports)
			fmt.Printf("First-pass yield: %d tested, %d passed, %d failed (%.1f%%)\n",
				s.Tested, s.Passed, s.Failed, s.Percent)
		} else {
			s = stats.Yield(reports)
			fmt.Printf("Yield: %d tested, %d passed, %d failed (%.1f%%)\n",
				s.Tested, s.Passed, s.Failed, s.Percent)
		}

		if pareto, _ := cmd.Flags().GetBool("pareto"); pareto {
			rows := stats.FailurePareto(reports)
			if len(rows) == 0 {
				fmt.Println("No failures recorded.")
				return nil
			}
			fmt.Println("\nFailure Pareto:")
			for _, row := range rows {
				fmt.Printf("  %4d  %s\n", row.Count, row.Label)
			}
		}
		return nil
	},
}

var redTagCmd = &cobra.Command{
	Use:   "redtag",
	Short: "Manage red tag (rework/quarantine) messages",
}

var redTagAddCmd = &cobra.Command{
	Use:     "add <barcode> <message>",
	Short:   "Attach a red tag message to a board",
	Args:    cobra.ExactArgs(2),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		board, err := parseBoard(args[0])
		if err != nil {
			return err
		}
		author, _ := cmd.Flags().GetString("author")
		m := &model.RedTagMessage{Barcode: board.String(), Author: author, Message: args[1]}
		if err := db.AddRedTagMessage(m); err != nil {
			return err
		}
		fmt.Printf("Red tag message %d added for %s.\n", m.ID, board)
		if appConfig.Sync.Mode == syncer.ModeGit {
			if err := syncer.New(appConfig.Sync).SyncBoardMessages(cmd.Context(), board); err != nil {
				log.Warnf("red tag sync failed: %v", err)
			}
		}
		return nil
	},
}

var redTagListCmd = &cobra.Command{
	Use:     "list <barcode>",
	Short:   "List the red tag messages for a board",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		board, err := parseBoard(args[0])
		if err != nil {
			return err
		}
		msgs, err := db.GetRedTagMessages(board.String())
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("No red tag messages found.")
			return nil
		}
		for _, m := range msgs {
			author := ""
			if m.Author != "" {
				author = " (" + m.Author + ")"
			}
			fmt.Printf("  [%d] %s%s: %s\n", m.ID, m.Timestamp, author, m.Message)
		}
		return nil
	},
}

var redTagEditCmd = &cobra.Command{
	Use:     "edit <id> <message>",
	Short:   "Replace the text of a red tag message",
	Args:    cobra.ExactArgs(2),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid message id %q", args[0])
		}
		if err := db.UpdateRedTagMessage(id, args[1]); err != nil {
			return err
		}
		fmt.Printf("Red tag message %d updated.\n", id)
		return nil
	},
}

var redTagRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Short:   "Delete a red tag message",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid message id %q", args[0])
		}
		if err := db.DeleteRedTagMessage(id); err != nil {
			return err
		}
		fmt.Printf("Red tag message %d deleted.\n", id)
		return nil
	},
}

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Manage process flow messages",
}

var flowAddCmd = &cobra.Command{
	Use:     "add <barcode> <message>",
	Short:   "Record a process flow event for a board",
	Args:    cobra.ExactArgs(2),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		board, err := parseBoard(args[0])
		if err != nil {
			return err
		}
		author, _ := cmd.Flags().GetString("author")
		m := &model.ProcessMessage{Barcode: board.String(), Author: author, Message: args[1]}
		if err := db.AddProcessMessage(m); err != nil {
			return err
		}
		fmt.Printf("Process flow message %d added for %s.\n", m.ID, board)
		return nil
	},
}

var flowListCmd = &cobra.Command{
	Use:     "list <barcode>",
	Short:   "List the process flow messages for a board",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		board, err := parseBoard(args[0])
		if err != nil {
			return err
		}
		msgs, err := db.GetProcessMessages(board.String())
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("No process flow messages found.")
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("  [%d] %s: %s\n", m.ID, m.Timestamp, m.Message)
		}
		return nil
	},
}
