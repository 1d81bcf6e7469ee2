package repository

import (
	"alcyxob/coach-sessions/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound = RepositoryError("not found")
	// ErrConflict means a conditional write found the record in another state,
	// or a unique index rejected the write.
	ErrConflict = RepositoryError("conflict")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Transactor runs fn inside one store transaction.
// Repository calls made with the ctx passed to fn take part in it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) // ErrConflict on duplicate email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	ListAthletesByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	SetRoles(ctx context.Context, id primitive.ObjectID, roles domain.Roles) error
	// SetTrainer assigns the athlete's trainer; nil clears it.
	SetTrainer(ctx context.Context, athleteID primitive.ObjectID, trainerID *primitive.ObjectID) error
	UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
}

// ExerciseRepository defines the interface for the exercise catalogue.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error)
	List(ctx context.Context) ([]domain.Exercise, error) // by category, then name
	Update(ctx context.Context, exercise *domain.Exercise) error
	SetVideoKey(ctx context.Context, id primitive.ObjectID, key string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// SessionRepository stores training sessions. Status changes are conditional
// on the current status and return ErrConflict when it does not match.
type SessionRepository interface {
	// Create returns ErrConflict when the athlete already has an open session.
	Create(ctx context.Context, session *domain.TrainingSession) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingSession, error)
	GetOpenByAthlete(ctx context.Context, athleteID primitive.ObjectID) (*domain.TrainingSession, error)
	ListByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.TrainingSession, error) // newest first
	ListByStatusForAthletes(ctx context.Context, status domain.SessionStatus, athleteIDs []primitive.ObjectID) ([]domain.TrainingSession, error)
	ListByStatusForTrainer(ctx context.Context, status domain.SessionStatus, trainerID primitive.ObjectID) ([]domain.TrainingSession, error)
	MarkJoined(ctx context.Context, id, trainerID primitive.ObjectID, at time.Time) (*domain.TrainingSession, error)
	MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) error
	MarkCancelled(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// RoundRepository stores session rounds.
type RoundRepository interface {
	// Create returns ErrConflict when the round number is already taken in the session.
	Create(ctx context.Context, round *domain.SessionRound) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.SessionRound, error)
	// ListBySession returns rounds ordered by number. An empty statuses slice means all.
	ListBySession(ctx context.Context, sessionID primitive.ObjectID, statuses []domain.RoundStatus) ([]domain.SessionRound, error)
	MaxRoundNumber(ctx context.Context, sessionID primitive.ObjectID) (int, error) // 0 when the session has none
	UpdatePlan(ctx context.Context, id primitive.ObjectID, from []domain.RoundStatus, isFinal bool, at time.Time) (*domain.SessionRound, error)
	MarkReleased(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.SessionRound, error)
	MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.SessionRound, error)
	DeleteDraft(ctx context.Context, id primitive.ObjectID) error
}

// RoundExerciseRepository stores planned exercises and their feedback.
type RoundExerciseRepository interface {
	// ReplaceForRound removes every exercise of the round and inserts the given ones.
	ReplaceForRound(ctx context.Context, roundID primitive.ObjectID, exercises []domain.RoundExercise) error
	ListByRound(ctx context.Context, roundID primitive.ObjectID) ([]domain.RoundExercise, error) // by order
	ListByRounds(ctx context.Context, roundIDs []primitive.ObjectID) ([]domain.RoundExercise, error)
	CountByRound(ctx context.Context, roundID primitive.ObjectID) (int64, error)
	CountByExercise(ctx context.Context, exerciseID primitive.ObjectID) (int64, error)
	// SaveFeedback writes feedback once; a second write returns ErrConflict.
	SaveFeedback(ctx context.Context, id, roundID primitive.ObjectID, feedback domain.Feedback, at time.Time) error
	DeleteByRound(ctx context.Context, roundID primitive.ObjectID) error
}

// WeightRepository stores body weight entries.
type WeightRepository interface {
	Create(ctx context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.WeightEntry, error) // newest date first
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
}
