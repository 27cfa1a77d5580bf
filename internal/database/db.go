// Package database opens the tracker's SQLite files and applies their schemas.
//
// Two files back the service: core.db holds the registry and observed
// history, forecasts.db holds derived rows that RefreshAll can rebuild at any
// time. Each file gets a profile that decides its durability PRAGMAs.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geoeco/tracker/pkg/embedded"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DatabaseProfile selects durability and pool settings.
type DatabaseProfile string

const (
	// ProfileCache trades durability for speed. Use it only for rows that can be recomputed.
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard fsyncs at checkpoints and reclaims space incrementally.
	ProfileStandard DatabaseProfile = "standard"
)

// Database names. Each has a matching schema file in pkg/embedded/schemas.
const (
	NameCore      = "core"
	NameForecasts = "forecasts"
)

var profilePragmas = map[DatabaseProfile][]string{
	ProfileCache:    {"synchronous(OFF)", "auto_vacuum(FULL)", "temp_store(MEMORY)"},
	ProfileStandard: {"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
}

// Applied to every profile after the profile's own list
var sharedPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"wal_autocheckpoint(1000)",
	"cache_size(-64000)", // KiB
}

type poolLimits struct {
	open, idle int
}

var profilePools = map[DatabaseProfile]poolLimits{
	ProfileCache:    {open: 10, idle: 2},
	ProfileStandard: {open: 25, idle: 5},
}

// Config describes one database file
type Config struct {
	// Path is a filesystem path or a "file:" URI, which is used as given
	Path    string
	Profile DatabaseProfile // defaults to ProfileStandard
	Name    string          // used in logs and to find the schema file
}

// DB is an open database file with its profile.
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// New opens the database, applies the profile and verifies the connection.
// Parent directories are created as needed.
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	if _, ok := profilePragmas[cfg.Profile]; !ok {
		return nil, fmt.Errorf("unknown database profile %q for %s", cfg.Profile, cfg.Name)
	}

	path := cfg.Path
	if !strings.HasPrefix(path, "file:") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path of %s: %w", cfg.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", cfg.Name, err)
		}
		path = abs
	}

	conn, err := sql.Open("sqlite", dsn(path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	limits := profilePools[cfg.Profile]
	conn.SetMaxOpenConns(limits.open)
	conn.SetMaxIdleConns(limits.idle)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: path, profile: cfg.Profile, name: cfg.Name}, nil
}

// dsn builds the modernc connection string. Every file runs in WAL mode.
func dsn(path string, profile DatabaseProfile) string {
	pragmas := append([]string{"journal_mode(WAL)"}, profilePragmas[profile]...)
	pragmas = append(pragmas, sharedPragmas...)

	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteString("?")
		} else {
			b.WriteString("&")
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// Close closes the pool
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the pool repositories query through
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name
func (db *DB) Name() string {
	return db.name
}

// Profile returns the database profile
func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

// Path returns the file path or URI the database was opened with
func (db *DB) Path() string {
	return db.path
}

// Migrate executes schemas/<name>.sql in one transaction. Schemas use
// IF NOT EXISTS, so running it on every start is safe. A database without a
// schema file is left untouched.
func (db *DB) Migrate() error {
	file := "schemas/" + db.name + ".sql"
	schema, err := fs.ReadFile(embedded.Schemas, file)
	if err != nil {
		return nil
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(schema)); err != nil {
			return fmt.Errorf("failed to apply %s to %s: %w", file, db.name, err)
		}
		return nil
	})
}

// WithTransaction runs fn in a transaction on a background context.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) error {
	return WithTransactionContext(context.Background(), db, fn)
}

// WithTransactionContext runs fn in a transaction. The transaction commits
// when fn returns nil and rolls back when fn fails or panics; a panic is
// converted into an error.
func WithTransactionContext(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
				return
			}
			err = fmt.Errorf("transaction failed: %w", err)
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(tx)
}

// HealthCheck pings the database and runs a full integrity check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.QuickCheck(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, result)
	}
	return nil
}

// QuickCheck only pings
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// CheckpointResult is the row returned by PRAGMA wal_checkpoint.
type CheckpointResult struct {
	Busy         bool `json:"busy"`
	LogFrames    int  `json:"log_frames"`
	Checkpointed int  `json:"checkpointed"`
}

var checkpointModes = map[string]bool{"PASSIVE": true, "FULL": true, "RESTART": true, "TRUNCATE": true}

// Checkpoint runs a WAL checkpoint. An empty mode means TRUNCATE.
func (db *DB) Checkpoint(ctx context.Context, mode string) (CheckpointResult, error) {
	if mode == "" {
		mode = "TRUNCATE"
	}
	if !checkpointModes[mode] {
		return CheckpointResult{}, fmt.Errorf("invalid WAL checkpoint mode %q", mode)
	}

	var busy int
	var res CheckpointResult
	row := db.conn.QueryRowContext(ctx, "PRAGMA wal_checkpoint("+mode+")")
	if err := row.Scan(&busy, &res.LogFrames, &res.Checkpointed); err != nil {
		return CheckpointResult{}, fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	res.Busy = busy != 0
	return res, nil
}

// Stats describes a database file
type Stats struct {
	SizeBytes     int64 `json:"size_bytes"`
	WALSizeBytes  int64 `json:"wal_size_bytes"`
	PageCount     int64 `json:"page_count"`
	PageSize      int64 `json:"page_size"`
	FreelistCount int64 `json:"freelist_count"`
}

// Stats reads file sizes and page counters. Missing files count as zero bytes.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		SizeBytes:    fileSize(db.path),
		WALSizeBytes: fileSize(db.path + "-wal"),
	}

	for pragma, dst := range map[string]*int64{
		"page_count":     &stats.PageCount,
		"page_size":      &stats.PageSize,
		"freelist_count": &stats.FreelistCount,
	} {
		if err := db.conn.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("failed to read %s of %s: %w", pragma, db.name, err)
		}
	}
	return stats, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
