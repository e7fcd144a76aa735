package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	apperrors "fleetbook/pkg/errors"
)

// TransactionFunc runs inside a session. Every repository call it makes
// must use the session context it receives, or the call escapes the
// transaction.
type TransactionFunc func(ctx mongo.SessionContext) error

// TransactionManager wraps the check-then-write sequences (conflict scan
// plus booking insert, membership read plus membership write) so they
// commit or roll back as one unit.
type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

// ExecuteTransaction runs fn inside session.WithTransaction. An AppError
// returned by fn aborts the transaction but passes through untouched, so
// the handler layer still sees the original status code; anything else is
// wrapped as a transaction failure.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
