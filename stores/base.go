package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type contextKey string

const TxKey contextKey = "tx"

var (
	ErrIdempotencyMismatch   = errors.New("idempotency key reused with a different request")
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is in progress")
)

type BaseStore struct {
	db *gorm.DB
}

// GetDB returns the transaction carried by ctx, if any. Every query issued
// while a transaction is open must go through it.
func (s *BaseStore) GetDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxKey).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithTransaction runs fn inside a transaction. Nested calls join the outer
// transaction instead of opening a new one.
func (s *BaseStore) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, TxKey, tx)
		return fn(txCtx)
	})
}

func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(TxKey).(*gorm.DB)
	return ok
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
