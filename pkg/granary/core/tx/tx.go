// Package tx provides the transaction abstraction for Granary's relational
// writes. The coordinator opens one transaction per record write (and a
// separate one per file reconciliation pass); repositories pick the active
// transaction up from the context.
package tx

import (
	"context"
	"database/sql"
)

// Tx represents an ongoing relational transaction. The concrete adapter
// (GORM) carries the live handle; repositories resolve it through the
// context.
type Tx interface {
	// Savepoint creates a named savepoint within the transaction.
	Savepoint(name string) error
	// RollbackToSavepoint rolls back to the named savepoint, preserving
	// changes made before it.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of relational transactions.
type TransactionManager interface {
	// Begin starts a new transaction.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits the transaction, persisting all changes made within it.
	Commit(tx Tx) error
	// Rollback rolls back the transaction, undoing all changes made within it.
	Rollback(tx Tx) error
}

// ctxKey is the context key type for the active transaction.
type ctxKey struct{}

// WithContext returns a context carrying the active transaction.
func WithContext(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext extracts the active transaction from the context, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(ctxKey{}).(Tx)
	return t, ok
}

// RunInTransaction is the scoped transaction guard: it begins a
// transaction, runs fn with the transaction bound to the context, commits
// when fn returns nil, and rolls back when fn returns an error (or
// panics). The non-transactional stores touched inside fn are compensated
// by fn itself before it returns the error.
func RunInTransaction(ctx context.Context, tm TransactionManager, fn func(ctx context.Context) error) error {
	t, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tm.Rollback(t)
		}
	}()

	if err := fn(WithContext(ctx, t)); err != nil {
		return err
	}

	if err := tm.Commit(t); err != nil {
		return err
	}
	committed = true
	return nil
}
