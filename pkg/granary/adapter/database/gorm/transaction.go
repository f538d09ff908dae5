package gorm

import (
	"context"
	"database/sql"
	"fmt"

	gormlib "gorm.io/gorm"

	"github.com/orbitalworks/granary/pkg/granary/core/tx"
)

// GormTx implements tx.Tx over a GORM transaction handle.
type GormTx struct {
	db *gormlib.DB
}

// Savepoint implements tx.Tx.
func (t *GormTx) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTx) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

var _ tx.Tx = (*GormTx)(nil)

// GormTransactionManager implements tx.TransactionManager over one
// Connection.
type GormTransactionManager struct {
	conn *Connection
}

// NewGormTransactionManager creates a transaction manager bound to the
// given connection.
func NewGormTransactionManager(conn *Connection) tx.TransactionManager {
	return &GormTransactionManager{conn: conn}
}

// Begin starts a new GORM transaction.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}

	gormTx := m.conn.db.WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTx{db: gormTx}, nil
}

// Commit commits the transaction.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gt, ok := t.(*GormTx)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTx")
	}
	return gt.db.Commit().Error
}

// Rollback rolls back the transaction.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gt, ok := t.(*GormTx)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTx")
	}
	return gt.db.Rollback().Error
}

var _ tx.TransactionManager = (*GormTransactionManager)(nil)
