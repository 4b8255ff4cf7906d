package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/BTreeMap/ResumePipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the SQLite database named by the
// DSN option and applies migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: opening", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	if path := sqlitePath(dsn); path != "" && path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("SQLiteStore.NewSQLiteStore: failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		slog.Error("SQLiteStore.NewSQLiteStore: migrations failed", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied")

	return &SQLiteStore{db: db}, nil
}

// sqlitePath extracts the filesystem path from a plain path or a file: URI.
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func (s *SQLiteStore) Consume(ctx context.Context, code, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE verification_codes SET used_by = ?, used_at = ? WHERE code = ? AND used_at IS NULL`,
		userID, time.Now(), NormalizeCode(code))
	if err != nil {
		slog.Error("SQLiteStore.Consume: update failed", "error", err, "user_id", userID)
		return false, fmt.Errorf("failed to consume code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	slog.Debug("SQLiteStore.Consume: checked code", "user_id", userID, "valid", n == 1)
	return n == 1, nil
}

func (s *SQLiteStore) AddCodes(ctx context.Context, codes ...string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	now := time.Now()
	for _, c := range codes {
		c = NormalizeCode(c)
		if c == "" {
			return 0, ErrEmptyCode
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO verification_codes (code, created_at) VALUES (?, ?)`, c, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert code: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit codes: %w", err)
	}
	slog.Debug("SQLiteStore.AddCodes: inserted", "requested", len(codes), "added", added)
	return added, nil
}

func (s *SQLiteStore) ListCodes(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT code FROM verification_codes WHERE used_at IS NULL ORDER BY code`)
}

func (s *SQLiteStore) Append(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO usage_log (username, created_at) VALUES (?, ?)`, username, time.Now())
	if err != nil {
		slog.Error("SQLiteStore.Append: insert failed", "error", err, "username", username)
		return false, fmt.Errorf("failed to append usage for %s: %w", username, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.UsageRecord, error) {
	return queryUsage(ctx, s.db, `SELECT username, created_at FROM usage_log ORDER BY created_at, rowid`)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("SQLiteStore.Close: closing database")
	return s.db.Close()
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

func queryUsage(ctx context.Context, db *sql.DB, query string) ([]models.UsageRecord, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage log: %w", err)
	}
	defer rows.Close()

	var out []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		if err := rows.Scan(&r.Username, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage rows: %w", err)
	}
	return out, nil
}
