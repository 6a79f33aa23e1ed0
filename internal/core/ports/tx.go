package ports

import "context"

// TransactionRunner executes fn atomically against the store. The context
// passed to fn carries the transaction; every repository call made with it
// joins the same transaction, and an error from fn rolls everything back.
type TransactionRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
