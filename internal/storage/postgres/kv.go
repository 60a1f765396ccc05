package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/storefront-kart/internal/kv"
)

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Pinger = (*Store)(nil)
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const (
	getQuery = `SELECT value FROM kv_entries WHERE key = $1`
	putQuery = `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	usageQuery = `SELECT COALESCE(SUM(octet_length(value)), 0) FROM kv_entries WHERE key <> $1`
)

// Store keeps one row per key in the kv_entries table.
type Store struct {
	db    DB
	quota int64
}

// Option configures a Store.
type Option func(*Store)

// WithQuota bounds the total size of all stored values in bytes.
func WithQuota(bytes int64) Option {
	return func(s *Store) { s.quota = bytes }
}

// New returns a Store on db. Run RunMigrations first.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	if err := s.db.QueryRow(ctx, getQuery, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classify(err, "postgres get "+key)
	}
	return value, true, nil
}

// Put upserts the value stored under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	op := "postgres put " + key
	if s.quota > 0 {
		used, err := s.Usage(ctx, key)
		if err != nil {
			return classify(err, op)
		}
		if used+int64(len(value)) > s.quota {
			return kv.Full(nil, op)
		}
	}
	if _, err := s.db.Exec(ctx, putQuery, key, value); err != nil {
		return classify(err, op)
	}
	return nil
}

// Usage returns the total size in bytes of every value except the one under
// key.
func (s *Store) Usage(ctx context.Context, except string) (int64, error) {
	var used int64
	if err := s.db.QueryRow(ctx, usageQuery, except).Scan(&used); err != nil {
		return 0, errors.Wrap(err, "usage")
	}
	return used, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return classify(err, "postgres ping")
	}
	return nil
}

// Resource errors reported by PostgreSQL when it cannot store more data.
const (
	codeDiskFull             = "53100"
	codeOutOfMemory          = "53200"
	codeProgramLimitExceeded = "54000"
)

func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeDiskFull, codeOutOfMemory, codeProgramLimitExceeded:
			return kv.Full(err, op)
		}
	}
	return kv.Unavailable(err, op)
}
