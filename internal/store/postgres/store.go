// Package postgres implements the store contracts on PostgreSQL through a
// pgx connection pool. Statements are built with goqu's postgres dialect and
// sent as prepared queries.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuslib/campuslib/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	dialectPostgres = "postgres"

	tableUsers   = "users"
	tableItems   = "items"
	tableBorrows = "borrow_records"
	tablePayment = "payments"

	pgUniqueViolation = "23505"

	defaultMaxConns        = int32(10)
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultConnectTimeout  = 5 * time.Second
)

var dialect = goqu.Dialect(dialectPostgres)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// sqlBuilder is implemented by every goqu dataset.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

// queries implements store.Tx against either the pool or an open transaction.
type queries struct {
	db     dbtx
	logger *slog.Logger
}

var _ store.Tx = (*queries)(nil)

// Options configures the pool.
type Options struct {
	DSN      string
	MaxConns int32
	Logger   *slog.Logger
}

// Store provides PostgreSQL-backed persistence.
type Store struct {
	queries
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database described by opts.DSN, verifies the
// connection and applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = defaultMaxConns
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MaxConnLifetime = defaultMaxConnLifetime
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	cfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// Without arguments pgx uses the simple protocol, which accepts the
	// multi-statement schema file.
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Debug("postgres store opened", "max_conns", cfg.MaxConns)

	return &Store{
		queries: queries{db: pool, logger: logger},
		pool:    pool,
		logger:  logger,
	}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx runs fn inside a single transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	if err := fn(&queries{db: tx, logger: s.logger}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ApplyPayment locks and reduces fines inside its own transaction when
// called outside InTx.
func (s *Store) ApplyPayment(ctx context.Context, email string, amount int) (int, error) {
	var applied int
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		applied, err = tx.ApplyPayment(ctx, email, amount)
		return err
	})
	return applied, err
}

// build renders a dataset to SQL with positional arguments.
func (q *queries) build(ds sqlBuilder) (string, []any, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	q.logger.Debug("sql", "query", query)
	return query, args, nil
}

func (q *queries) exec(ctx context.Context, ds sqlBuilder) (int64, error) {
	query, args, err := q.build(ds)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *queries) queryRow(ctx context.Context, ds sqlBuilder) (pgx.Row, error) {
	query, args, err := q.build(ds)
	if err != nil {
		return nil, err
	}
	return q.db.QueryRow(ctx, query, args...), nil
}

func (q *queries) query(ctx context.Context, ds sqlBuilder) (pgx.Rows, error) {
	query, args, err := q.build(ds)
	if err != nil {
		return nil, err
	}
	return q.db.Query(ctx, query, args...)
}

// isUniqueViolation reports whether err came from a unique constraint.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
