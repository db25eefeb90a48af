// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for the testhub
// application using the Cobra library. It defines the root command,
// subcommands (like run, yield, sync), flags, and the main entry point
// for execution.

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesa-nmanteufel/testhub/internal/config"
	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/i18n"
	"github.com/mesa-nmanteufel/testhub/internal/instrument"
	"github.com/mesa-nmanteufel/testhub/internal/logging"
	"github.com/mesa-nmanteufel/testhub/internal/tui"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)
var cfgFile string
var verbose bool
var showVersionFlag bool

var appConfig config.Config

// setupDefaultServices loads the configuration, initializes i18n and opens
// the database. Every subcommand that touches station data uses it as a
// PreRunE.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	optionalConfigPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	defaults := map[string]any{
		"database.type":           "sqlite",
		"database.dsn":            "./testhub.db",
		"language":                "en",
		"station":                 hostname,
		"instrument.backend":      instrument.BackendAnalogDiscovery,
		"instrument.supply_volts": 0.0,
		"sync.mode":               "off",
	}

	appConfig, err = config.LoadConfig[config.Config](cmd, defaults, optionalConfigPath)
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		// First run, or the config file was deleted. Create a default one.
		if writeErr := config.WriteConfigFile(&appConfig, false); writeErr != nil {
			log.Warnf("Warning: could not write default config file: %v", writeErr)
		}
	} else if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Guard against a config file with empty values for the essentials.
	if appConfig.Database.Type == "" {
		appConfig.Database.Type = defaults["database.type"].(string)
	}
	if appConfig.Database.Dsn == "" {
		appConfig.Database.Dsn = defaults["database.dsn"].(string)
	}
	if appConfig.Language == "" {
		appConfig.Language = defaults["language"].(string)
	}
	if appConfig.Instrument.Backend == "" {
		appConfig.Instrument.Backend = defaults["instrument.backend"].(string)
	}
	if appConfig.Station == "" {
		appConfig.Station = hostname
	}

	i18n.Init(appConfig.Language)

	if !db.IsInitialized() {
		if err := db.InitDB(appConfig.Database.Type, appConfig.Database.Dsn); err != nil {
			return errors.New(i18n.T("config.error_init_db", err))
		}
	}

	return nil
}

// Execute runs the CLI entrypoint. The cmd/testhub main package should call
// this function and handle process exit.
func Execute() error {
	rootCmd := NewRootCmd()
	return rootCmd.Execute()
}

func applyDefaultFlags(cmd *cobra.Command) {
	// pflag panics on duplicate definitions and NewRootCmd may be called
	// multiple times in tests, so check first.
	if cmd.Flags().Lookup("database.type") == nil {
		cmd.Flags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	}
	if cmd.Flags().Lookup("database.dsn") == nil {
		cmd.Flags().String("database.dsn", "./testhub.db", "Database connection string (DSN)")
	}
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, fmt.Errorf("could not read --config flag: %w", err)
		}
		if path == "" {
			return nil, nil
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		return &path, nil
	}
	return nil, nil
}

// NewRootCmd creates and configures a new root cobra command. This function
// builds the main application command as well as fresh instances for
// isolated testing.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testhub",
		Short: "Testhub is the bench test station hub for PCB production.",
		Long: `Testhub drives the bed-of-nails fixture, scans board barcodes,
runs the matching test plan, and keeps every report, red tag message and
process flow note in one station database. Reports sync to the central
results origin over git or SFTP.

Running without a subcommand will launch the interactive TUI.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if showVersionFlag {
				fmt.Println(compositeVersion())
				os.Exit(0)
			}
			if verbose {
				logging.SetDebug(true)
				db.SetDebug(true)
			}
			return setupDefaultServices(cmd, args)
		},
		Run: func(cmd *cobra.Command, args []string) {
			// Config, i18n and database are ready; just run the TUI.
			tui.Run(appConfig)
		},
	}

	cmd.Version = compositeVersion()

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (sets -v for DB logs)")
	cmd.PersistentFlags().BoolVarP(&showVersionFlag, "version", "V", false, "Print version and exit")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().String("language", "en", `TUI language ("en", "de")`)
	applyDefaultFlags(cmd)

	applyDefaultFlags(runCmd)
	if runCmd.Flags().Lookup("plan") == nil {
		runCmd.Flags().String("plan", "", "External test plan YAML file (bring-up only)")
		runCmd.Flags().Bool("no-sync", false, "Skip the report sync after the run")
	}
	applyDefaultFlags(reportCmd)
	applyDefaultFlags(exportCmd)
	if exportCmd.Flags().Lookup("html") == nil {
		exportCmd.Flags().Bool("html", false, "Also write an HTML rendering next to the JSON file")
	}
	applyDefaultFlags(boardsCmd)
	applyDefaultFlags(yieldCmd)
	if yieldCmd.Flags().Lookup("board") == nil {
		yieldCmd.Flags().String("board", "", "Limit to one board name")
		yieldCmd.Flags().String("revision", "", "Limit to one revision")
		yieldCmd.Flags().String("variant", "", "Limit to one variant")
		yieldCmd.Flags().String("serial-from", "", "Lowest serial to include")
		yieldCmd.Flags().String("serial-to", "", "Highest serial to include")
		yieldCmd.Flags().Bool("pareto", false, "Show the failure Pareto instead of just the yield")
		yieldCmd.Flags().Bool("first-pass", false, "Count only each board's first run")
	}
	applyDefaultFlags(redTagCmd)
	if redTagAddCmd.Flags().Lookup("author") == nil {
		redTagAddCmd.Flags().String("author", "", "Author recorded with the message")
	}
	applyDefaultFlags(flowCmd)
	if flowAddCmd.Flags().Lookup("author") == nil {
		flowAddCmd.Flags().String("author", "", "Author recorded with the message")
	}
	applyDefaultFlags(syncCmd)
	if syncCmd.Flags().Lookup("watch") == nil {
		syncCmd.Flags().Bool("watch", false, "Keep running and sync on the configured schedule")
	}
	applyDefaultFlags(trustHostCmd)
	applyDefaultFlags(auditLogCmd)
	applyDefaultFlags(dbMaintainCmd)
	applyDefaultFlags(backupCmd)
	applyDefaultFlags(restoreCmd)
	if restoreCmd.Flags().Lookup("full") == nil {
		restoreCmd.Flags().BoolVar(&fullRestore, "full", false, "Perform a full, destructive restore (wipes all existing data first)")
	}
	applyDefaultFlags(migrateCmd)
	if migrateCmd.Flags().Lookup("type") == nil {
		migrateCmd.Flags().String("type", "", "Target database type (sqlite, postgres, mysql)")
		migrateCmd.Flags().String("dsn", "", "Target database DSN")
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			fmt.Printf("version: %s\n", v)
			fmt.Printf("commit: %s\n", c)
			if d != "" {
				fmt.Printf("built: %s\n", d)
			}
		},
	}

	redTagCmd.AddCommand(redTagAddCmd, redTagListCmd, redTagEditCmd, redTagRmCmd)
	flowCmd.AddCommand(flowAddCmd, flowListCmd)

	cmd.AddCommand(
		runCmd,
		reportCmd,
		exportCmd,
		boardsCmd,
		yieldCmd,
		redTagCmd,
		flowCmd,
		syncCmd,
		trustHostCmd,
		auditLogCmd,
		dbMaintainCmd,
		backupCmd,
		restoreCmd,
		migrateCmd,
		versionCmd,
	)

	return cmd
}

func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	out := v
	if c != "" && c != "dev" {
		out = out + " (" + c + ")"
	}
	if d != "" {
		out = out + " built: " + d
	}
	return out
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime. Separated out to make unit testing straightforward.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := version
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	var ok bool
	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
			ok = true
		}
	} else {
		ok = true
	}

	if ok && info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		if (resolvedVersion == "dev" || resolvedVersion == "(devel)") && info.Deps != nil {
			for _, dep := range info.Deps {
				if dep.Path == "github.com/mesa-nmanteufel/testhub" && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}

// banner prints the station header the operators are used to seeing.
func banner(title string) {
	line := strings.Repeat("~", 46)
	fmt.Println(line)
	fmt.Println("MESA Technologies")
	fmt.Println(title)
	fmt.Println(line)
}
