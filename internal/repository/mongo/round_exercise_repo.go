package mongo

import (
	"context"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const roundExerciseCollectionName = "round_exercises"

type mongoRoundExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoRoundExerciseRepository creates a RoundExerciseRepository backed by MongoDB.
func NewMongoRoundExerciseRepository(db *mongo.Database) repository.RoundExerciseRepository {
	return &mongoRoundExerciseRepository{
		collection: db.Collection(roundExerciseCollectionName),
	}
}

// ReplaceForRound deletes the round's exercises and inserts the new list.
// Run it inside a transaction so readers never see the round empty.
func (r *mongoRoundExerciseRepository) ReplaceForRound(ctx context.Context, roundID primitive.ObjectID, exercises []domain.RoundExercise) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"roundId": roundID}); err != nil {
		return err
	}
	if len(exercises) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(exercises))
	for i := range exercises {
		ex := &exercises[i]
		if ex.ID.IsZero() {
			ex.ID = primitive.NewObjectID()
		}
		ex.RoundID = roundID
		docs = append(docs, ex)
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func byOrder() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
}

func (r *mongoRoundExerciseRepository) ListByRound(ctx context.Context, roundID primitive.ObjectID) ([]domain.RoundExercise, error) {
	return decodeAll[domain.RoundExercise](ctx, r.collection, bson.M{"roundId": roundID}, byOrder())
}

func (r *mongoRoundExerciseRepository) ListByRounds(ctx context.Context, roundIDs []primitive.ObjectID) ([]domain.RoundExercise, error) {
	if len(roundIDs) == 0 {
		return []domain.RoundExercise{}, nil
	}
	return decodeAll[domain.RoundExercise](ctx, r.collection, bson.M{"roundId": bson.M{"$in": roundIDs}}, byOrder())
}

func (r *mongoRoundExerciseRepository) CountByRound(ctx context.Context, roundID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"roundId": roundID})
}

func (r *mongoRoundExerciseRepository) CountByExercise(ctx context.Context, exerciseID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"exerciseId": exerciseID})
}

// SaveFeedback records the athlete's feedback on one exercise of the round.
// Feedback already present yields ErrConflict.
func (r *mongoRoundExerciseRepository) SaveFeedback(ctx context.Context, id, roundID primitive.ObjectID, feedback domain.Feedback, at time.Time) error {
	filter := bson.M{"_id": id, "roundId": roundID, "completedAt": nil}
	set := bson.M{
		"difficulty":  feedback.Difficulty,
		"hadPain":     feedback.HadPain,
		"completedAt": at,
	}
	if len(feedback.PainRegions) > 0 {
		set["painRegions"] = feedback.PainRegions
	}
	if feedback.AthleteNotes != "" {
		set["athleteNotes"] = feedback.AthleteNotes
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *mongoRoundExerciseRepository) DeleteByRound(ctx context.Context, roundID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"roundId": roundID})
	return err
}

// EnsureRoundExerciseIndexes creates the indexes of the round_exercises collection.
func EnsureRoundExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "roundId", Value: 1}, {Key: "order", Value: 1}},
		},
		{
			// Catalogue deletes check whether an exercise is planned anywhere.
			Keys: bson.D{{Key: "exerciseId", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
