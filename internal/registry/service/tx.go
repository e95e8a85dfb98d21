package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	txcontext "careledger/pkg/platform/tx"
)

// TxRunner executes a function inside a unit of work. Stores that see the
// resulting context join the same transaction, so the status change, audit
// record and outbox entry commit or roll back together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTxRunner runs units of work on a database transaction.
type SQLTxRunner struct {
	db *sql.DB
}

// NewSQLTxRunner constructs a runner over the given pool.
func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

// RunInTx begins a transaction, threads it through the context and commits
// when fn returns nil. Any error rolls the whole unit back.
func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MemoryTxRunner serializes units of work with a mutex. Memory stores have no
// rollback, so tests relying on it must assert through the service contract,
// where validation failures happen before any write.
type MemoryTxRunner struct {
	mu sync.Mutex
}

// NewMemoryTxRunner constructs a runner for in-memory stores.
func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

// RunInTx runs fn under the runner's lock.
func (r *MemoryTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
