// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for testhub. It abstracts the
// underlying database (SQLite on the bench by default, Postgres or MySQL
// for shared deployments) behind a consistent Store interface so the rest
// of the application never touches SQL drivers directly.
package db // import "github.com/mesa-nmanteufel/testhub/internal/db"

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	// SQL drivers required for integration tests and runtime.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

var (
	store Store
	//go:embed migrations
	embeddedMigrations embed.FS
	// sqlOpenFunc allows tests to override database opening behavior.
	sqlOpenFunc = sql.Open
)

// InitDB initializes the database connection based on the provided type and
// DSN. It sets the package-level store and runs any pending migrations.
func InitDB(dbType, dsn string) error {
	s, err := NewStoreFromDSN(dbType, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	store = s
	return nil
}

// IsInitialized reports whether the package-level store has been set.
func IsInitialized() bool {
	return store != nil
}

// SetStore replaces the package-level store. Intended for tests.
func SetStore(s Store) {
	store = s
}

// NewStoreFromDSN opens a sql.DB for the given DSN, runs migrations, and
// returns a Store backed by a long-lived *bun.DB.
func NewStoreFromDSN(dbType, dsn string) (Store, error) {
	driverName := dbType
	// The pgx stdlib registers driver name "pgx"; map "postgres" to that driver.
	if dbType == "postgres" {
		driverName = "pgx"
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Conservative pool defaults for a single-operator bench station;
	// overridable via environment for shared deployments.
	const (
		defaultMaxOpenConns    = 10
		defaultMaxIdleConns    = 10
		defaultConnMaxLifetime = 5 * time.Minute
	)

	maxOpen := envInt("TESTHUB_DB_MAX_OPEN_CONNS", defaultMaxOpenConns)
	maxIdle := envInt("TESTHUB_DB_MAX_IDLE_CONNS", defaultMaxIdleConns)

	// In-memory SQLite puts each connection in its own database; force a
	// single connection so the schema is visible everywhere. Tests rely on this.
	if dbType == "sqlite" && dsn == ":memory:" {
		maxOpen = 1
		maxIdle = 1
	}

	connMax := defaultConnMaxLifetime
	if n := envInt("TESTHUB_DB_CONN_MAX_LIFETIME_SECONDS", -1); n >= 0 {
		connMax = time.Duration(n) * time.Second
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMax)
	sqlDB.SetConnMaxIdleTime(time.Duration(envInt("TESTHUB_DB_CONN_MAX_IDLE_SECONDS", 60)) * time.Second)

	dbLogf("db: opened %s driver in %s (conn max open=%d)", driverName, time.Since(start), maxOpen)

	migStart := time.Now()
	if err := RunMigrations(sqlDB, dbType); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	dbLogf("db: migrations for %s completed in %s", dbType, time.Since(migStart))

	bunDB := createBunDB(sqlDB, dbType)
	switch dbType {
	case "sqlite":
		return NewSqliteStore(bunDB), nil
	case "postgres":
		return NewPostgresStore(bunDB), nil
	case "mysql":
		return NewMySQLStore(bunDB), nil
	default:
		return nil, fmt.Errorf("unsupported database type for store creation: '%s'", dbType)
	}
}

// envInt reads an integer environment variable, returning def when unset or
// malformed.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// RunMigrations applies the embedded migrations for a given connection.
func RunMigrations(db *sql.DB, dbType string) error {
	migrationsPath := fmt.Sprintf("migrations/%s", dbType)

	entries, err := fs.ReadDir(embeddedMigrations, migrationsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read embedded migrations (%s): %w", migrationsPath, err)
	}

	var ups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if err := ensureSchemaMigrationsTable(db, dbType); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	for _, fname := range ups {
		version := strings.TrimSuffix(fname, ".up.sql")

		var exists int
		query := "SELECT 1 FROM schema_migrations WHERE version = ?"
		if dbType == "postgres" {
			query = "SELECT 1 FROM schema_migrations WHERE version = $1"
		}
		err := db.QueryRow(query, version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check migration version %s: %w", version, err)
		}

		data, err := embeddedMigrations.ReadFile(path.Join(migrationsPath, fname))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", fname, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", version, err)
		}
		// Execute statement by statement; the MySQL driver refuses
		// multi-statement Exec without a special DSN flag.
		for _, stmt := range splitStatements(string(data)) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to execute migration %s: %w", version, err)
			}
		}

		insertQuery := "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)"
		if dbType == "postgres" {
			insertQuery = "INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2)"
		}
		if _, err := tx.Exec(insertQuery, version, time.Now()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to commit migration %s: %w", version, err)
		}
	}

	return nil
}

// splitStatements breaks a migration file into individual SQL statements on
// trailing semicolons. Statements in our migrations never contain literal
// semicolons, so no real parser is needed.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// ensureSchemaMigrationsTable creates schema_migrations if missing.
func ensureSchemaMigrationsTable(db *sql.DB, dbType string) error {
	// MySQL cannot index TEXT columns without a length, so use VARCHAR there.
	if dbType == "mysql" {
		_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(191) PRIMARY KEY, applied_at TIMESTAMP)`)
		return err
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP)`)
	return err
}

// RunDBMaintenance performs engine-specific maintenance for the given DSN:
// PRAGMA optimize / VACUUM / WAL checkpoint and integrity check for SQLite,
// VACUUM ANALYZE for Postgres, OPTIMIZE TABLE for MySQL.
func RunDBMaintenance(dbType, dsn string) error {
	driverName := dbType
	if dbType == "postgres" {
		driverName = "pgx"
	}
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for maintenance: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch dbType {
	case "sqlite":
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
			dbLogf("db: sqlite optimize failed (ignored): %v", err)
		}
		if _, err := sqlDB.ExecContext(ctx, "VACUUM;"); err != nil {
			return fmt.Errorf("sqlite vacuum failed: %w", err)
		}
		_, _ = sqlDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);")
		var res string
		if row := sqlDB.QueryRowContext(ctx, "PRAGMA integrity_check;"); row != nil {
			_ = row.Scan(&res)
			if res != "ok" {
				return fmt.Errorf("sqlite integrity_check failed: %s", res)
			}
		}
	case "postgres":
		if _, err := sqlDB.ExecContext(ctx, "VACUUM ANALYZE;"); err != nil {
			return fmt.Errorf("postgres vacuum failed: %w", err)
		}
	case "mysql":
		rows, err := sqlDB.QueryContext(ctx, "SHOW TABLES")
		if err != nil {
			return fmt.Errorf("mysql show tables failed: %w", err)
		}
		defer func() { _ = rows.Close() }()
		var table string
		var lastErr error
		for rows.Next() {
			if err := rows.Scan(&table); err != nil {
				return fmt.Errorf("mysql read table name failed: %w", err)
			}
			if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf("OPTIMIZE TABLE %s", table)); err != nil {
				dbLogf("db: mysql optimize table %s failed: %v", table, err)
				lastErr = err
			}
		}
		if lastErr != nil {
			return fmt.Errorf("mysql optimize encountered errors: %w", lastErr)
		}
	default:
		return fmt.Errorf("unsupported db type for maintenance: %s", dbType)
	}
	return nil
}

// --- Package-level facade ---
//
// These wrappers delegate to the initialized store so call sites don't have
// to thread a Store through every layer. InitDB must have run first.

// SaveReport persists a finished test report (and its results).
func SaveReport(r *model.TestReport) error { return store.SaveReport(r) }

// GetReportsForBoard retrieves all stored reports for a board, newest first.
func GetReportsForBoard(b model.Board) ([]model.TestReport, error) {
	return store.GetReportsForBoard(b)
}

// GetReports retrieves reports matching a filter, newest first.
func GetReports(filter model.ReportFilter) ([]model.TestReport, error) {
	return store.GetReports(filter)
}

// GetUnsyncedReports returns reports not yet pushed to the central origin.
func GetUnsyncedReports() ([]model.TestReport, error) { return store.GetUnsyncedReports() }

// MarkReportSynced flags a report as pushed to the central origin.
func MarkReportSynced(id string) error { return store.MarkReportSynced(id) }

// ListBoardNames returns the distinct board names with stored reports.
func ListBoardNames() ([]string, error) { return store.ListBoardNames() }

// ListRevisions returns the distinct revisions tested for a board.
func ListRevisions(board string) ([]string, error) { return store.ListRevisions(board) }

// ListVariants returns the distinct variants tested for a board revision.
func ListVariants(board, revision string) ([]string, error) {
	return store.ListVariants(board, revision)
}

// SerialBounds returns the lowest and highest serial tested for a selection.
func SerialBounds(board, revision, variant string) (string, string, error) {
	return store.SerialBounds(board, revision, variant)
}

// AddRedTagMessage attaches a red tag message to a board.
func AddRedTagMessage(m *model.RedTagMessage) error { return store.AddRedTagMessage(m) }

// GetRedTagMessages returns the red tag messages for a barcode, oldest first.
func GetRedTagMessages(barcode string) ([]model.RedTagMessage, error) {
	return store.GetRedTagMessages(barcode)
}

// UpdateRedTagMessage replaces the text of an existing red tag message.
func UpdateRedTagMessage(id int, message string) error {
	return store.UpdateRedTagMessage(id, message)
}

// DeleteRedTagMessage removes a red tag message.
func DeleteRedTagMessage(id int) error { return store.DeleteRedTagMessage(id) }

// AddProcessMessage records a process flow event for a board.
func AddProcessMessage(m *model.ProcessMessage) error { return store.AddProcessMessage(m) }

// GetProcessMessages returns the process flow messages for a barcode.
func GetProcessMessages(barcode string) ([]model.ProcessMessage, error) {
	return store.GetProcessMessages(barcode)
}

// GetKnownHostKey returns the pinned public key for an upload host.
func GetKnownHostKey(host string) (string, error) { return store.GetKnownHostKey(host) }

// SetKnownHostKey pins the public key for an upload host.
func SetKnownHostKey(host, key string) error { return store.SetKnownHostKey(host, key) }

// LogAction records an audit trail event.
func LogAction(action string, details string) error { return store.LogAction(action, details) }

// GetAllAuditLogEntries retrieves the audit log, most recent first.
func GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return store.GetAllAuditLogEntries()
}

// ExportDataForBackup retrieves all data from the database for a backup.
func ExportDataForBackup() (*model.BackupData, error) { return store.ExportDataForBackup() }

// ImportDataFromBackup restores the database from a backup, destructively.
func ImportDataFromBackup(backup *model.BackupData) error {
	return store.ImportDataFromBackup(backup)
}

// IntegrateDataFromBackup merges a backup without touching existing rows.
func IntegrateDataFromBackup(backup *model.BackupData) error {
	return store.IntegrateDataFromBackup(backup)
}
