// Package store provides storage backends for ResumePipe.
//
// It holds the verification codes that gate access to the bot, the usage log of
// completed sessions, and the inbound message deduplication records. SQLite,
// PostgreSQL and in-memory backends implement the same interfaces; the usage
// log additionally has a flat JSON file backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// ErrEmptyCode is returned when adding a blank verification code.
var ErrEmptyCode = errors.New("verification code cannot be empty")

// CodeStore holds single-use verification codes.
type CodeStore interface {
	// Consume reports whether code is valid, marking it used by userID in the
	// same operation. A code can be consumed at most once.
	Consume(ctx context.Context, code, userID string) (bool, error)
	// AddCodes inserts codes, ignoring ones that already exist. It returns the
	// number actually inserted.
	AddCodes(ctx context.Context, codes ...string) (int, error)
	// ListCodes returns the codes that have not been consumed.
	ListCodes(ctx context.Context) ([]string, error)
}

// UsageLog records the usernames of completed sessions.
type UsageLog interface {
	// Append records username. It returns false when the name was already present.
	Append(ctx context.Context, username string) (bool, error)
	// List returns every recorded entry in insertion order.
	List(ctx context.Context) ([]models.UsageRecord, error)
}

// Store is the full persistence surface used by the bot.
type Store interface {
	CodeStore
	UsageLog
	DedupRepo
	Close() error
}

// Opts holds configuration options for the relational stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for the stores.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite database path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Open returns the store for dsn: PostgreSQL or SQLite depending on its shape,
// or an in-memory store when dsn is empty.
func Open(dsn string) (Store, error) {
	if dsn == "" {
		slog.Warn("store.Open: no DSN configured, using in-memory store; codes and usage are lost on restart")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(dsn) {
	case "postgres":
		s, err := NewPostgresStore(WithPostgresDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return s, nil
	default:
		s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	}
}

// NormalizeCode canonicalizes a typed code: surrounding whitespace is dropped
// and letters are upper-cased, matching GenerateVerificationCode output.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeUsername trims whitespace and a leading "@".
func NormalizeUsername(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}
