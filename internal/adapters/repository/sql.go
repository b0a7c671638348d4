package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/okian/painpoint/pkg/logger"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultPageSize = 50

// SQLStore implements Store over database/sql. SQLite (modernc) and Postgres
// (pgx stdlib) share one code path; queries are written with ? placeholders
// and rebound for Postgres.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
	log      logger.Logger
	maxOpen  int
}

var _ Store = (*SQLStore)(nil)

// Open connects to the store. It does not migrate.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		now: func() time.Time { return time.Now().UTC() },
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var name string
	switch driver {
	case DriverSQLite, "":
		name = "sqlite"
		// One writer; also keeps file::memory: databases on a single connection.
		if s.maxOpen == 0 {
			s.maxOpen = 1
		}
	case DriverPostgres:
		name = "pgx"
		s.postgres = true
		if s.maxOpen == 0 {
			s.maxOpen = 10
		}
	default:
		return nil, eris.Wrapf(ErrUnknownDriver, "driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: open", driver)
	}
	db.SetMaxOpenConns(s.maxOpen)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrapf(err, "%s: ping", driver)
	}
	s.db = db
	return s, nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "store: ping")
}

// Close releases the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var migrations = []string{ //nolint:gochecknoglobals // schema
	`CREATE TABLE IF NOT EXISTS scans (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	requested    TEXT NOT NULL DEFAULT '[]',
	sources      TEXT NOT NULL DEFAULT '[]',
	found        INTEGER NOT NULL DEFAULT 0,
	summary      TEXT NOT NULL DEFAULT '{}',
	error        TEXT NOT NULL DEFAULT '',
	origin       TEXT NOT NULL DEFAULT '',
	triggered_by TEXT NOT NULL DEFAULT '',
	created_at   BIGINT NOT NULL,
	started_at   BIGINT NOT NULL DEFAULT 0,
	completed_at BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status)`,
	`CREATE TABLE IF NOT EXISTS opportunities (
	id                  TEXT PRIMARY KEY,
	cluster_key         TEXT NOT NULL UNIQUE,
	title               TEXT NOT NULL,
	problem             TEXT NOT NULL DEFAULT '',
	score               INTEGER NOT NULL DEFAULT 0,
	rank                INTEGER NOT NULL DEFAULT 0,
	validated           INTEGER NOT NULL DEFAULT 0,
	recommendation      TEXT NOT NULL DEFAULT '',
	mention_count       INTEGER NOT NULL DEFAULT 0,
	last_scan_mentions  INTEGER NOT NULL DEFAULT 0,
	trend               TEXT NOT NULL DEFAULT 'stable',
	source_counts       TEXT NOT NULL DEFAULT '{}',
	source_urls         TEXT NOT NULL DEFAULT '[]',
	revenue_display     TEXT NOT NULL DEFAULT '',
	revenue_amount      DOUBLE PRECISION NOT NULL DEFAULT 0,
	competitor_count    INTEGER NOT NULL DEFAULT -1,
	competitor_urls     TEXT NOT NULL DEFAULT '[]',
	paid_signal         INTEGER NOT NULL DEFAULT 0,
	competition_level   TEXT NOT NULL DEFAULT '',
	complexity          TEXT NOT NULL DEFAULT '',
	b2b                 INTEGER NOT NULL DEFAULT 0,
	market_size         TEXT NOT NULL DEFAULT '',
	problem_score       INTEGER NOT NULL DEFAULT 0,
	feasibility_score   INTEGER NOT NULL DEFAULT 0,
	why_now_score       INTEGER NOT NULL DEFAULT 0,
	b2b_override        INTEGER,
	complexity_override TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'new',
	notes               TEXT NOT NULL DEFAULT '',
	first_seen          BIGINT NOT NULL,
	last_seen           BIGINT NOT NULL,
	created_at          BIGINT NOT NULL,
	updated_at          BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_score ON opportunities(score)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_last_seen ON opportunities(last_seen)`,
	`CREATE TABLE IF NOT EXISTS opportunity_mentions (
	mention_key    TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL REFERENCES opportunities(id),
	scan_id        TEXT NOT NULL,
	created_at     BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunity_mentions_opp ON opportunity_mentions(opportunity_id)`,
	`CREATE TABLE IF NOT EXISTS review_queue (
	mention_key TEXT PRIMARY KEY,
	scan_id     TEXT NOT NULL,
	source      TEXT NOT NULL,
	signature   TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	created_at  BIGINT NOT NULL,
	expires_at  BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_review_queue_expires_at ON review_queue(expires_at)`,
	`CREATE TABLE IF NOT EXISTS settings (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`,
}

// Migrate creates the schema. It is idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "store: migrate step %d", i)
		}
	}
	return nil
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(q string) string {
	if !s.postgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, q dbtx, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, q dbtx, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q dbtx, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

// inTx runs fn in a transaction, rolling back on error.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn(ctx, "rollback failed", logger.Error(rbErr))
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "store: commit")
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal")
	}
	return string(b), nil
}

func fromJSON(s string, dest any) error {
	if s == "" {
		return nil
	}
	return eris.Wrap(json.Unmarshal([]byte(s), dest), "store: unmarshal")
}

func stringArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}
