package mongo

import (
	"context"
	"errors"
	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const exerciseCollectionName = "exercises"

// mongoExerciseRepository implements repository.ExerciseRepository
type mongoExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoExerciseRepository creates a new Exercise repository backed by MongoDB.
func NewMongoExerciseRepository(db *mongo.Database) repository.ExerciseRepository {
	return &mongoExerciseRepository{
		collection: db.Collection(exerciseCollectionName),
	}
}

// Create inserts a new exercise into the catalogue.
func (r *mongoExerciseRepository) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if exercise.Name == "" {
		return primitive.NilObjectID, errors.New("exercise name is required")
	}

	if exercise.ID.IsZero() {
		exercise.ID = primitive.NewObjectID()
	}
	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = time.Now().UTC()
	}
	exercise.UpdatedAt = exercise.CreatedAt

	if _, err := r.collection.InsertOne(ctx, exercise); err != nil {
		return primitive.NilObjectID, err
	}
	return exercise.ID, nil
}

// GetByID retrieves an exercise by its ID.
func (r *mongoExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	var exercise domain.Exercise
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&exercise)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &exercise, nil
}

// GetByIDs returns the exercises found among ids.
func (r *mongoExerciseRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	if len(ids) == 0 {
		return []domain.Exercise{}, nil
	}
	return decodeAll[domain.Exercise](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}})
}

// List returns the whole catalogue sorted by category, then name.
func (r *mongoExerciseRepository) List(ctx context.Context) ([]domain.Exercise, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	return decodeAll[domain.Exercise](ctx, r.collection, bson.M{}, opts)
}

// Update overwrites the editable catalogue fields. The video key has its own setter.
func (r *mongoExerciseRepository) Update(ctx context.Context, exercise *domain.Exercise) error {
	exercise.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"name":           exercise.Name,
		"category":       exercise.Category,
		"requiredFields": exercise.RequiredFields,
		"updatedAt":      exercise.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if exercise.CustomCategory != "" {
		set["customCategory"] = exercise.CustomCategory
	} else {
		update["$unset"] = bson.M{"customCategory": ""}
	}
	return r.updateOne(ctx, exercise.ID, update)
}

// SetVideoKey stores the object key of the exercise video; an empty key removes it.
func (r *mongoExerciseRepository) SetVideoKey(ctx context.Context, id primitive.ObjectID, key string) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"videoKey": key, "updatedAt": now}}
	if key == "" {
		update = bson.M{"$unset": bson.M{"videoKey": ""}, "$set": bson.M{"updatedAt": now}}
	}
	return r.updateOne(ctx, id, update)
}

func (r *mongoExerciseRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an exercise from the catalogue.
func (r *mongoExerciseRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureExerciseIndexes creates necessary indexes for the exercises collection.
func EnsureExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Catalogue listing order
			Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "name", Value: "text"}},
			Options: options.Index().SetName("exercise_text_search"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
