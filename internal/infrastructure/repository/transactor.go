package repository

import (
	"context"

	"gorm.io/gorm"
)

type txContextKey struct{}

// Transactor groups mutations from several repositories into one database
// transaction. Repository calls made with the context Atomic passes resolve
// their connection to the shared transaction, so either every mutation
// commits or none does.
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// conn resolves the connection for a repository call: the enclosing
// transaction when one is open on the context, the shared handle otherwise.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
