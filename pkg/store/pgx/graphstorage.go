package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/fingraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// batched reads pass at most this many ids per ANY($1) query
const idChunkSize = 1000

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Nodes, the five
// attribute tables and edges live in their own tables; properties are kept
// as jsonb.
type GraphDBStorage struct {
	conn pgxIConn
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// connection, pool or transaction.
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

// Ping checks that the database is reachable.
func (s *GraphDBStorage) Ping(ctx context.Context) error {
	if p, ok := s.conn.(pinger); ok {
		return p.Ping(ctx)
	}
	var one int
	if err := s.conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *GraphDBStorage) withTx(ctx context.Context, fn func(tx pgxv5.Tx) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
