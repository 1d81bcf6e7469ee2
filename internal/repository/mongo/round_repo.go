package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const roundCollectionName = "session_rounds"

type mongoRoundRepository struct {
	collection *mongo.Collection
}

// NewMongoRoundRepository creates a RoundRepository backed by MongoDB.
func NewMongoRoundRepository(db *mongo.Database) repository.RoundRepository {
	return &mongoRoundRepository{
		collection: db.Collection(roundCollectionName),
	}
}

// Create inserts a round. A taken (sessionId, roundNumber) pair yields ErrConflict.
func (r *mongoRoundRepository) Create(ctx context.Context, round *domain.SessionRound) (primitive.ObjectID, error) {
	if round.ID.IsZero() {
		round.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, round); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return round.ID, nil
}

func (r *mongoRoundRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.SessionRound, error) {
	var round domain.SessionRound
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&round); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &round, nil
}

func (r *mongoRoundRepository) ListBySession(ctx context.Context, sessionID primitive.ObjectID, statuses []domain.RoundStatus) ([]domain.SessionRound, error) {
	filter := bson.M{"sessionId": sessionID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "roundNumber", Value: 1}})
	return decodeAll[domain.SessionRound](ctx, r.collection, filter, opts)
}

// MaxRoundNumber returns the highest round number in the session, or 0.
func (r *mongoRoundRepository) MaxRoundNumber(ctx context.Context, sessionID primitive.ObjectID) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "roundNumber", Value: -1}}).
		SetProjection(bson.M{"roundNumber": 1})

	var latest struct {
		RoundNumber int `bson:"roundNumber"`
	}
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}, opts).Decode(&latest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return latest.RoundNumber, nil
}

// UpdatePlan overwrites isFinalRound on a round whose status is one of from.
func (r *mongoRoundRepository) UpdatePlan(ctx context.Context, id primitive.ObjectID, from []domain.RoundStatus, isFinal bool, at time.Time) (*domain.SessionRound, error) {
	return r.transition(ctx, id, from, bson.M{"isFinalRound": isFinal, "updatedAt": at})
}

// MarkReleased moves a DRAFT round to RELEASED.
func (r *mongoRoundRepository) MarkReleased(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.SessionRound, error) {
	return r.transition(ctx, id, []domain.RoundStatus{domain.RoundDraft}, bson.M{
		"status":     domain.RoundReleased,
		"releasedAt": at,
		"updatedAt":  at,
	})
}

// MarkCompleted moves a RELEASED round to COMPLETED.
func (r *mongoRoundRepository) MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.SessionRound, error) {
	return r.transition(ctx, id, []domain.RoundStatus{domain.RoundReleased}, bson.M{
		"status":      domain.RoundCompleted,
		"completedAt": at,
		"updatedAt":   at,
	})
}

func (r *mongoRoundRepository) transition(ctx context.Context, id primitive.ObjectID, from []domain.RoundStatus, set bson.M) (*domain.SessionRound, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var round domain.SessionRound
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&round)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return &round, nil
}

// DeleteDraft removes a round that is still DRAFT.
func (r *mongoRoundRepository) DeleteDraft(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "status": domain.RoundDraft})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

// EnsureRoundIndexes creates the indexes of the session_rounds collection.
func EnsureRoundIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "roundNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
