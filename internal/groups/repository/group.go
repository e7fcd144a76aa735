package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	groupserrors "fleetbook/internal/groups/errors"
	"fleetbook/pkg/config"
	mongotx "fleetbook/pkg/db/mongo"
	"fleetbook/pkg/model"
)

const CollectionName = "Groups"

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	FindByID(ctx context.Context, id string) (*model.Group, error)
	FindByName(ctx context.Context, name string) (*model.Group, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Group, error)
	Count(ctx context.Context) (int64, error)
	ReplaceMembers(ctx context.Context, id string, members []model.GroupMember) error
	UpdateDetails(ctx context.Context, group *model.Group) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoGroupRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoGroupRepository(cfg *config.Config) GroupRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoGroupRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoGroupRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoGroupRepository) Create(ctx context.Context, group *model.Group) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	group.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, group)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		group.ID = oid.Hex()
	}
	return nil
}

func (r *mongoGroupRepository) FindByID(ctx context.Context, id string) (*model.Group, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", groupserrors.ErrInvalidID, id)
	}

	var group model.Group
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, groupserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}

	return &group, nil
}

func (r *mongoGroupRepository) FindByName(ctx context.Context, name string) (*model.Group, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var group model.Group
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, groupserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find group by name: %w", err)
	}

	return &group, nil
}

func (r *mongoGroupRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Group, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find groups: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []*model.Group
	if err = cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	return groups, nil
}

func (r *mongoGroupRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return count, nil
}

func (r *mongoGroupRepository) ReplaceMembers(ctx context.Context, id string, members []model.GroupMember) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", groupserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"members": members}},
	)
	if err != nil {
		return fmt.Errorf("failed to update group members: %w", err)
	}
	if result.MatchedCount == 0 {
		return groupserrors.ErrNotFound
	}
	return nil
}

func (r *mongoGroupRepository) UpdateDetails(ctx context.Context, group *model.Group) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(group.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", groupserrors.ErrInvalidID, group.ID)
	}

	update := bson.M{
		"$set": bson.M{
			"name":        group.Name,
			"description": group.Description,
			"members":     group.Members,
			"updated_by":  group.UpdatedBy,
			"updated_at":  group.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if result.MatchedCount == 0 {
		return groupserrors.ErrNotFound
	}
	return nil
}

func (r *mongoGroupRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", groupserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.DeletedCount == 0 {
		return groupserrors.ErrNotFound
	}
	return nil
}

func (r *mongoGroupRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
