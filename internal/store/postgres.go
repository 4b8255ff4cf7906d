package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ResumePipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		slog.Error("PostgresStore.NewPostgresStore: migrations failed", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.NewPostgresStore: migrations applied")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Consume(ctx context.Context, code, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE verification_codes SET used_by = $1, used_at = $2 WHERE code = $3 AND used_at IS NULL`,
		userID, time.Now(), NormalizeCode(code))
	if err != nil {
		slog.Error("PostgresStore.Consume: update failed", "error", err, "user_id", userID)
		return false, fmt.Errorf("failed to consume code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) AddCodes(ctx context.Context, codes ...string) (int, error) {
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
		res, err := tx.ExecContext(ctx,
			`INSERT INTO verification_codes (code, created_at) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`, c, now)
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
	slog.Debug("PostgresStore.AddCodes: inserted", "requested", len(codes), "added", added)
	return added, nil
}

func (s *PostgresStore) ListCodes(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT code FROM verification_codes WHERE used_at IS NULL ORDER BY code`)
}

func (s *PostgresStore) Append(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_log (username, created_at) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING`,
		username, time.Now())
	if err != nil {
		slog.Error("PostgresStore.Append: insert failed", "error", err, "username", username)
		return false, fmt.Errorf("failed to append usage for %s: %w", username, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.UsageRecord, error) {
	return queryUsage(ctx, s.db, `SELECT username, created_at FROM usage_log ORDER BY id`)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("PostgresStore.Close: closing database")
	return s.db.Close()
}
