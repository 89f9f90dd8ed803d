package database

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nimeshabuddhika/book-order-payments/pkg/utils"
	"go.uber.org/zap"
)

// Querier is satisfied by *DB and pgx.Tx so repositories can run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor runs fn inside a single read-committed transaction on the primary.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// Database is the storage-access object injected into services.
type Database interface {
	Querier
	Transactor
	// Writer reads from the primary. Payment settlement uses it so a freshly created order is never missed on a lagging replica.
	Writer() Querier
}

type Config struct {
	PrimaryDSN  string
	ReplicaDSNs []string
	MaxConns    int32
	MinConns    int32
}

// DB sends writes and transactions to the primary and spreads plain reads over the replicas.
type DB struct {
	writer  *pgxpool.Pool
	readers []*pgxpool.Pool
	next    atomic.Uint64
}

var _ Database = (*DB)(nil)

// New opens the primary pool and one pool per distinct replica. The returned func closes them all.
func New(ctx context.Context, logger *zap.Logger, cfg Config) (*DB, func(), error) {
	writer, err := newPool(ctx, logger, cfg.PrimaryDSN, cfg.MaxConns, cfg.MinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("primary: %w", err)
	}

	var readers []*pgxpool.Pool
	closeAll := func() {
		for _, r := range readers {
			r.Close()
		}
		writer.Close()
	}
	for i, dsn := range cfg.ReplicaDSNs {
		if utils.IsEmpty(dsn) || dsn == cfg.PrimaryDSN {
			continue
		}
		reader, err := newPool(ctx, logger, dsn, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("replica %d: %w", i, err)
		}
		readers = append(readers, reader)
	}
	logger.Info("postgres_pools_ready", zap.Int("replicas", len(readers)))

	return &DB{writer: writer, readers: readers}, func() {
		closeAll()
		logger.Info("postgres_pools_closed")
	}, nil
}

func newPool(ctx context.Context, logger *zap.Logger, dsn string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	dsn = "postgres://" + dsn
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	config.MaxConns = maxConns
	config.MinConns = minConns
	config.MaxConnLifetime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Debug("postgres_pool_established", zap.String("dsn", maskDSN(dsn)))
	return pool, nil
}

// maskDSN hides the password. Unparseable input is returned unchanged.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	return u.Redacted()
}

// WithTransaction commits when fn returns nil and rolls back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, db.writer, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.reader().Query(ctx, sql, args...)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.reader().QueryRow(ctx, sql, args...)
}

// Exec always runs on the primary.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.writer.Exec(ctx, sql, args...)
}

func (db *DB) Writer() Querier {
	return db.writer
}

// Ping checks the primary only; replicas falling behind do not make the service unready.
func (db *DB) Ping(ctx context.Context) error {
	return db.writer.Ping(ctx)
}

// reader picks replicas round-robin and falls back to the primary when none are configured.
func (db *DB) reader() *pgxpool.Pool {
	if len(db.readers) == 0 {
		return db.writer
	}
	return db.readers[db.next.Add(1)%uint64(len(db.readers))]
}
