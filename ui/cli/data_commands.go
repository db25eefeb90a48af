// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// data_commands.go holds the data plumbing subcommands: sync, host trust,
// audit log, database maintenance, backup/restore and migration.

package cli

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/mesa-nmanteufel/testhub/internal/db"
	"github.com/mesa-nmanteufel/testhub/internal/export"
	"github.com/mesa-nmanteufel/testhub/internal/model"
	syncer "github.com/mesa-nmanteufel/testhub/internal/sync"
)

var fullRestore bool // Flag for the restore command

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push unsynced reports to the central results origin",
	Long: `Pushes every report not yet synced to the configured origin (git or
SFTP, per the sync section of the config). With --watch, keeps running and
syncs on the configured cron schedule.`,
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		s := syncer.New(appConfig.Sync)
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			log.Infof("watching; syncing on schedule %q", appConfig.Sync.Schedule)
			return s.Watch(cmd.Context())
		}
		n, err := s.SyncOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %d report(s).\n", n)
		return nil
	},
}

var trustHostCmd = &cobra.Command{
	Use:   "trust-host <host>",
	Short: "Pin a results server's host key",
	Long: `Connects to the results server, shows its public key fingerprint
and, after confirmation, pins the key in the station database. Report
uploads refuse to talk to a server whose key does not match the pin.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		host := args[0]
		if strings.Contains(host, "@") {
			_, host, _ = strings.Cut(host, "@")
		}

		key, err := syncer.GetRemoteHostKey(host)
		if err != nil {
			return err
		}
		fmt.Printf("Host: %s\nKey type: %s\nFingerprint: %s\n",
			host, key.Type(), ssh.FingerprintSHA256(key))

		if answer := promptForConfirmation("Trust this host key? (yes/no): "); answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}

		hostOnly := host
		if h, _, err := net.SplitHostPort(host); err == nil {
			hostOnly = h
		}
		if err := db.SetKnownHostKey(hostOnly, string(ssh.MarshalAuthorizedKey(key))); err != nil {
			return err
		}
		fmt.Printf("Host key for %s pinned.\n", hostOnly)
		return nil
	},
}

func promptForConfirmation(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(answer))
}

var auditLogCmd = &cobra.Command{
	Use:     "audit-log",
	Short:   "Show the station audit trail",
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		entries, err := db.GetAllAuditLogEntries()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Audit log is empty.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-20s %s\n", e.Timestamp, e.Action, e.Details)
		}
		return nil
	},
}

var dbMaintainCmd = &cobra.Command{
	Use:     "db-maintain",
	Short:   "Run database maintenance (VACUUM/OPTIMIZE) for the configured DB",
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := db.RunDBMaintenance(appConfig.Database.Type, appConfig.Database.Dsn); err != nil {
			return err
		}
		fmt.Println("Database maintenance complete.")
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [output-file]",
	Short: "Create a compressed (zstd) JSON backup of the database",
	Long: `Exports every report, message and audit entry into a single
compressed backup file. Default file name: testhub-backup-<timestamp>` + export.BackupExt + `.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		filename := "testhub-backup-" + model.Now() + export.BackupExt
		if len(args) > 0 {
			filename = args[0]
		}

		data, err := db.ExportDataForBackup()
		if err != nil {
			return fmt.Errorf("failed to export data: %w", err)
		}
		if err := export.WriteBackup(filename, data); err != nil {
			return err
		}
		fmt.Printf("Backup written to %s (%d reports).\n", filename, len(data.Reports))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore the database from a compressed backup",
	Long: `Merges a backup into the current database without touching existing
rows. With --full, wipes the database first and loads the backup verbatim.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		data, err := export.ReadBackup(args[0])
		if err != nil {
			return err
		}

		if fullRestore {
			fmt.Println("This will DELETE all existing data and replace it with the backup.")
			if answer := promptForConfirmation("Continue? (yes/no): "); answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
			if err := db.ImportDataFromBackup(data); err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Printf("Restored %d report(s) (full restore).\n", len(data.Reports))
			return nil
		}

		if err := db.IntegrateDataFromBackup(data); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Integrated %d report(s) from backup.\n", len(data.Reports))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate --type <db-type> --dsn <target-dsn>",
	Short: "Migrate data from the current database to a new one",
	Long: `Copies all station data from the configured database into a fresh
target database, e.g. from the local SQLite file to a shared Postgres
server. The target must be empty.`,
	PreRunE: setupDefaultServices,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		targetType, _ := cmd.Flags().GetString("type")
		targetDsn, _ := cmd.Flags().GetString("dsn")
		if targetType == "" || targetDsn == "" {
			return fmt.Errorf("both --type and --dsn are required")
		}
		if targetType == appConfig.Database.Type && targetDsn == appConfig.Database.Dsn {
			return fmt.Errorf("target database matches the current one")
		}

		data, err := db.ExportDataForBackup()
		if err != nil {
			return fmt.Errorf("failed to export current database: %w", err)
		}

		target, err := db.NewStoreFromDSN(targetType, targetDsn)
		if err != nil {
			return fmt.Errorf("failed to open target database: %w", err)
		}
		if err := target.ImportDataFromBackup(data); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Printf("Migrated %d report(s) to %s.\n", len(data.Reports), targetType)
		fmt.Println("Update the database section of the config to use the new database.")
		return nil
	},
}
