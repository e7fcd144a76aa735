package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fleetbook/pkg/model"
)

// SlotLockRepository provides advisory locks for check-and-insert flows.
// Inserting a lock whose _id is already present fails with a duplicate key
// error, which the caller treats as "someone else is mutating this slot".
// The expires_at field backs a TTL index so a crashed holder cannot wedge a
// slot beyond the lock TTL.
type SlotLockRepository interface {
	EnsureIndexes(ctx context.Context) error
	Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	Release(ctx context.Context, lockID string) error
}

type mongoSlotLockRepository struct {
	collection *mongo.Collection
}

func NewSlotLockRepository(client *mongo.Client, database, collection string) SlotLockRepository {
	return &mongoSlotLockRepository{
		collection: client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the TTL index on expires_at. Mongo expires each lock
// document at the instant expires_at names, so a holder that dies between
// Acquire and Release cannot wedge the slot past the lock's lifetime.
func (r *mongoSlotLockRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (r *mongoSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	lock.CreatedAt = time.Now()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

func (r *mongoSlotLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
