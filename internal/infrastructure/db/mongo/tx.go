package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// TxRunner implements ports.TransactionRunner on a MongoDB session. It
// requires a replica set or sharded cluster; standalone servers reject
// transactions.
type TxRunner struct {
	client *mongo.Client
}

func NewTxRunner(client *mongo.Client) *TxRunner {
	return &TxRunner{client: client}
}

// WithinTransaction runs fn inside a MongoDB transaction. The session context
// handed to fn makes every repository call issued through it join the
// transaction; an error from fn aborts and rolls everything back.
func (t *TxRunner) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
