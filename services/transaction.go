package services

import (
	"context"

	"github.com/upb/calendar-api/repositories"
)

// WithTransactionResult runs fn inside txMgr.InTransaction and returns its
// result. The context handed to fn carries the transaction, so repository
// calls made with it join the transaction.
//
// fn's error is returned as is so callers can still match it with errors.Is.
// The result is the zero value whenever the transaction did not commit.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		var err error
		result, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
