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

const sessionCollectionName = "training_sessions"

type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a SessionRepository backed by MongoDB.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// Create inserts a session. The partial unique index on athleteId turns a
// second open session for the same athlete into ErrConflict.
func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.TrainingSession) (primitive.ObjectID, error) {
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return session.ID, nil
}

func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingSession, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetOpenByAthlete returns the athlete's WAITING or ACTIVE session.
func (r *mongoSessionRepository) GetOpenByAthlete(ctx context.Context, athleteID primitive.ObjectID) (*domain.TrainingSession, error) {
	return r.findOne(ctx, bson.M{
		"athleteId": athleteID,
		"status":    bson.M{"$in": domain.OpenSessionStatuses},
	})
}

func (r *mongoSessionRepository) findOne(ctx context.Context, filter bson.M) (*domain.TrainingSession, error) {
	var session domain.TrainingSession
	if err := r.collection.FindOne(ctx, filter).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
}

func (r *mongoSessionRepository) ListByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.TrainingSession, error) {
	return decodeAll[domain.TrainingSession](ctx, r.collection, bson.M{"athleteId": athleteID}, newestFirst())
}

func (r *mongoSessionRepository) ListByStatusForAthletes(ctx context.Context, status domain.SessionStatus, athleteIDs []primitive.ObjectID) ([]domain.TrainingSession, error) {
	if len(athleteIDs) == 0 {
		return []domain.TrainingSession{}, nil
	}
	filter := bson.M{"status": status, "athleteId": bson.M{"$in": athleteIDs}}
	return decodeAll[domain.TrainingSession](ctx, r.collection, filter, newestFirst())
}

func (r *mongoSessionRepository) ListByStatusForTrainer(ctx context.Context, status domain.SessionStatus, trainerID primitive.ObjectID) ([]domain.TrainingSession, error) {
	filter := bson.M{"status": status, "trainerId": trainerID}
	return decodeAll[domain.TrainingSession](ctx, r.collection, filter, newestFirst())
}

// MarkJoined moves a WAITING session to ACTIVE and returns the updated session.
func (r *mongoSessionRepository) MarkJoined(ctx context.Context, id, trainerID primitive.ObjectID, at time.Time) (*domain.TrainingSession, error) {
	filter := bson.M{"_id": id, "status": domain.SessionWaiting}
	update := bson.M{"$set": bson.M{
		"status":    domain.SessionActive,
		"trainerId": trainerID,
		"joinedAt":  at,
		"updatedAt": at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session domain.TrainingSession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return &session, nil
}

// MarkCompleted moves an ACTIVE session to COMPLETED.
func (r *mongoSessionRepository) MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.transition(ctx, id, []domain.SessionStatus{domain.SessionActive}, bson.M{
		"status":      domain.SessionCompleted,
		"completedAt": at,
		"updatedAt":   at,
	})
}

// MarkCancelled moves an open session to CANCELLED. completedAt stays unset.
func (r *mongoSessionRepository) MarkCancelled(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	from := domain.SessionStatusesAllowing(domain.SessionEventCancel)
	return r.transition(ctx, id, from, bson.M{
		"status":    domain.SessionCancelled,
		"updatedAt": at,
	})
}

func (r *mongoSessionRepository) transition(ctx context.Context, id primitive.ObjectID, from []domain.SessionStatus, set bson.M) error {
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

// EnsureSessionIndexes creates the indexes of the training_sessions collection.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// At most one open session per athlete.
			Keys: bson.D{{Key: "athleteId", Value: 1}},
			Options: options.Index().
				SetName("one_open_session_per_athlete").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": domain.OpenSessionStatuses}}),
		},
		{
			Keys: bson.D{{Key: "athleteId", Value: 1}, {Key: "startedAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "trainerId", Value: 1}, {Key: "status", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
