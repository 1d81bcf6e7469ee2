package mongo

import (
	"context"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const weightCollectionName = "weight_entries"

type mongoWeightRepository struct {
	collection *mongo.Collection
}

// NewMongoWeightRepository creates a WeightRepository backed by MongoDB.
func NewMongoWeightRepository(db *mongo.Database) repository.WeightRepository {
	return &mongoWeightRepository{
		collection: db.Collection(weightCollectionName),
	}
}

func (r *mongoWeightRepository) Create(ctx context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error) {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return primitive.NilObjectID, err
	}
	return entry.ID, nil
}

func (r *mongoWeightRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.WeightEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	return decodeAll[domain.WeightEntry](ctx, r.collection, bson.M{"userId": userID}, opts)
}

// Delete removes an entry owned by userID.
func (r *mongoWeightRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureWeightIndexes creates the indexes of the weight_entries collection.
func EnsureWeightIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}},
	})
	return err
}
