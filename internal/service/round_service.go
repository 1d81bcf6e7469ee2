package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/metrics"
	"alcyxob/coach-sessions/internal/realtime"
	"alcyxob/coach-sessions/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxRoundNumberAttempts bounds retries when two creates pick the same round number.
const maxRoundNumberAttempts = 3

// PlannedExercise is one exercise a trainer puts into a round.
type PlannedExercise struct {
	ExerciseID      primitive.ObjectID
	Order           int
	PlannedWeight   *float64
	PlannedReps     *int
	PlannedDistance *float64
	PlannedTime     *int
	PlannedRPE      *int
	TrainerNotes    string
}

// SaveRoundInput creates a round when RoundID is nil, otherwise replaces the round's plan.
type SaveRoundInput struct {
	SessionID    primitive.ObjectID
	RoundID      *primitive.ObjectID
	IsFinalRound bool
	Exercises    []PlannedExercise
}

// RoundService owns drafting, releasing and deleting rounds.
type RoundService interface {
	SaveRound(ctx context.Context, caller domain.Caller, in SaveRoundInput) (primitive.ObjectID, error)
	ReleaseRound(ctx context.Context, caller domain.Caller, roundID primitive.ObjectID) error
	DeleteRound(ctx context.Context, caller domain.Caller, roundID primitive.ObjectID) error
}

type roundService struct {
	stores   Stores
	notifier *notifier
	metrics  *metrics.Manager
	log      *zap.Logger
	now      func() time.Time
}

func NewRoundService(stores Stores, publisher realtime.Publisher, m *metrics.Manager, log *zap.Logger) RoundService {
	return &roundService{
		stores:   stores,
		notifier: &notifier{publisher: publisher, metrics: m, log: log},
		metrics:  m,
		log:      log,
		now:      utcNow,
	}
}

// SaveRound stores the plan and returns the round id. An empty exercise list is
// accepted for a draft; release rejects it, and so does revising a released round.
func (s *roundService) SaveRound(ctx context.Context, caller domain.Caller, in SaveRoundInput) (primitive.ObjectID, error) {
	if err := requireRole(caller, domain.RoleTrainer); err != nil {
		return primitive.NilObjectID, err
	}

	session, err := s.loadSession(ctx, in.SessionID, ErrSessionNotFound)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if err := s.checkTrainerMayPlan(caller, session); err != nil {
		return primitive.NilObjectID, err
	}

	exercises, err := s.buildPlan(ctx, in.Exercises)
	if err != nil {
		return primitive.NilObjectID, err
	}

	if in.RoundID == nil {
		return s.createRound(ctx, session, in.IsFinalRound, exercises)
	}

	round, err := s.stores.Rounds.GetByID(ctx, *in.RoundID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, ErrRoundNotFound
		}
		return primitive.NilObjectID, fmt.Errorf("load round: %w", err)
	}
	if round.SessionID != session.ID {
		return primitive.NilObjectID, ErrRoundNotFound
	}

	ev := domain.EditEventFor(round.Status)
	if !domain.RoundAllows(round.Status, ev) {
		return primitive.NilObjectID, ErrRoundNotEditable
	}
	if ev == domain.RoundEventRevise {
		if len(exercises) == 0 {
			return primitive.NilObjectID, ErrRoundEmpty
		}
		return round.ID, s.reviseReleasedRound(ctx, session, round, in.IsFinalRound, exercises)
	}
	return round.ID, s.editDraftRound(ctx, round, in.IsFinalRound, exercises)
}

func (s *roundService) createRound(ctx context.Context, session *domain.TrainingSession, isFinal bool, exercises []domain.RoundExercise) (primitive.ObjectID, error) {
	for attempt := 1; attempt <= maxRoundNumberAttempts; attempt++ {
		var round *domain.SessionRound
		err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			maxNumber, err := s.stores.Rounds.MaxRoundNumber(ctx, session.ID)
			if err != nil {
				return fmt.Errorf("read max round number: %w", err)
			}
			now := s.now()
			round = &domain.SessionRound{
				SessionID:    session.ID,
				RoundNumber:  maxNumber + 1,
				Status:       domain.RoundDraft,
				IsFinalRound: isFinal,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if _, err := s.stores.Rounds.Create(ctx, round); err != nil {
				return err
			}
			return s.stores.RoundExercises.ReplaceForRound(ctx, round.ID, cloneExercises(exercises))
		})
		if errors.Is(err, repository.ErrConflict) {
			s.log.Debug("round number taken, retrying",
				zap.String("session_id", session.ID.Hex()), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("create round: %w", err)
		}

		s.metrics.CounterRoundTransitions.WithLabelValues("create").Inc()
		s.log.Info("round drafted",
			zap.String("session_id", session.ID.Hex()),
			zap.String("round_id", round.ID.Hex()),
			zap.Int("round_number", round.RoundNumber))
		return round.ID, nil
	}
	return primitive.NilObjectID, ErrRoundBusy
}

// editDraftRound replaces the plan of a round the athlete cannot see yet.
func (s *roundService) editDraftRound(ctx context.Context, round *domain.SessionRound, isFinal bool, exercises []domain.RoundExercise) error {
	if _, err := s.replacePlan(ctx, round, isFinal, exercises); err != nil {
		return err
	}
	s.metrics.CounterRoundTransitions.WithLabelValues(string(domain.RoundEventEdit)).Inc()
	return nil
}

// reviseReleasedRound replaces the plan of a round the athlete already sees and
// tells the athlete to reload it.
func (s *roundService) reviseReleasedRound(ctx context.Context, session *domain.TrainingSession, round *domain.SessionRound, isFinal bool, exercises []domain.RoundExercise) error {
	updated, err := s.replacePlan(ctx, round, isFinal, exercises)
	if err != nil {
		return err
	}
	s.metrics.CounterRoundTransitions.WithLabelValues(string(domain.RoundEventRevise)).Inc()
	s.log.Info("released round revised",
		zap.String("session_id", session.ID.Hex()), zap.String("round_id", round.ID.Hex()))
	s.notifier.publish(ctx, session.ID, realtime.RoundUpdated(session.ID, updated.ID, updated.RoundNumber))
	return nil
}

// replacePlan swaps the exercise list and the final flag in one transaction,
// provided the round is still in the status it was read in.
func (s *roundService) replacePlan(ctx context.Context, round *domain.SessionRound, isFinal bool, exercises []domain.RoundExercise) (*domain.SessionRound, error) {
	var updated *domain.SessionRound
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.stores.Rounds.UpdatePlan(ctx, round.ID, []domain.RoundStatus{round.Status}, isFinal, s.now())
		if err != nil {
			return err
		}
		return s.stores.RoundExercises.ReplaceForRound(ctx, round.ID, cloneExercises(exercises))
	})
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("replace round plan: %w", err)
	}

	current, getErr := s.stores.Rounds.GetByID(ctx, round.ID)
	switch {
	case errors.Is(getErr, repository.ErrNotFound):
		return nil, ErrRoundNotFound
	case getErr != nil:
		return nil, fmt.Errorf("reload round: %w", getErr)
	case !domain.RoundAllows(current.Status, domain.EditEventFor(current.Status)):
		return nil, ErrRoundNotEditable
	default:
		return nil, ErrRoundBusy
	}
}

// ReleaseRound makes a non-empty draft visible to the athlete.
func (s *roundService) ReleaseRound(ctx context.Context, caller domain.Caller, roundID primitive.ObjectID) error {
	round, session, err := s.authorizeRoundChange(ctx, caller, roundID)
	if err != nil {
		return err
	}
	if !domain.RoundAllows(round.Status, domain.RoundEventRelease) {
		return ErrRoundNotReleasable
	}

	var released *domain.SessionRound
	err = s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		count, err := s.stores.RoundExercises.CountByRound(ctx, round.ID)
		if err != nil {
			return fmt.Errorf("count round exercises: %w", err)
		}
		if count == 0 {
			return ErrRoundEmpty
		}
		released, err = s.stores.Rounds.MarkReleased(ctx, round.ID, s.now())
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrRoundNotReleasable
		}
		if errors.Is(err, ErrRoundEmpty) {
			return ErrRoundEmpty
		}
		return fmt.Errorf("release round: %w", err)
	}

	s.metrics.CounterRoundTransitions.WithLabelValues(string(domain.RoundEventRelease)).Inc()
	s.log.Info("round released",
		zap.String("session_id", session.ID.Hex()),
		zap.String("round_id", released.ID.Hex()),
		zap.Int("round_number", released.RoundNumber))
	s.notifier.publish(ctx, session.ID, realtime.RoundReleased(session.ID, released.ID, released.RoundNumber))
	return nil
}

// DeleteRound removes a draft and its exercises. Later rounds keep their numbers.
func (s *roundService) DeleteRound(ctx context.Context, caller domain.Caller, roundID primitive.ObjectID) error {
	round, session, err := s.authorizeRoundChange(ctx, caller, roundID)
	if err != nil {
		return err
	}
	if !domain.RoundAllows(round.Status, domain.RoundEventDelete) {
		return ErrRoundNotDeletable
	}

	err = s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.stores.RoundExercises.DeleteByRound(ctx, round.ID); err != nil {
			return fmt.Errorf("delete round exercises: %w", err)
		}
		return s.stores.Rounds.DeleteDraft(ctx, round.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrRoundNotDeletable
		}
		return fmt.Errorf("delete round: %w", err)
	}

	s.metrics.CounterRoundTransitions.WithLabelValues(string(domain.RoundEventDelete)).Inc()
	s.log.Info("round deleted",
		zap.String("session_id", session.ID.Hex()),
		zap.String("round_id", round.ID.Hex()),
		zap.Int("round_number", round.RoundNumber))
	s.notifier.publish(ctx, session.ID, realtime.RoundDeleted(session.ID, round.ID, round.RoundNumber))
	return nil
}

// authorizeRoundChange loads the round and its session and checks that the
// caller is the session's trainer and the session is still running.
func (s *roundService) authorizeRoundChange(ctx context.Context, caller domain.Caller, roundID primitive.ObjectID) (*domain.SessionRound, *domain.TrainingSession, error) {
	if err := requireRole(caller, domain.RoleTrainer); err != nil {
		return nil, nil, err
	}
	round, err := s.stores.Rounds.GetByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrRoundNotFound
		}
		return nil, nil, fmt.Errorf("load round: %w", err)
	}
	session, err := s.loadSession(ctx, round.SessionID, ErrRoundNotFound)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkTrainerMayPlan(caller, session); err != nil {
		return nil, nil, err
	}
	return round, session, nil
}

func (s *roundService) checkTrainerMayPlan(caller domain.Caller, session *domain.TrainingSession) error {
	if !session.IsJoinedTrainer(caller.UserID) {
		return ErrForbidden
	}
	if session.Status != domain.SessionActive {
		return ErrSessionNotActive
	}
	return nil
}

func (s *roundService) loadSession(ctx context.Context, id primitive.ObjectID, notFound error) (*domain.TrainingSession, error) {
	session, err := s.stores.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// buildPlan checks every planned exercise against the catalogue.
func (s *roundService) buildPlan(ctx context.Context, planned []PlannedExercise) ([]domain.RoundExercise, error) {
	if len(planned) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(planned))
	for _, p := range planned {
		ids = append(ids, p.ExerciseID)
	}
	found, err := s.stores.Exercises.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load exercises: %w", err)
	}
	catalogue := make(map[primitive.ObjectID]domain.Exercise, len(found))
	for _, ex := range found {
		catalogue[ex.ID] = ex
	}

	out := make([]domain.RoundExercise, 0, len(planned))
	for _, p := range planned {
		ex, ok := catalogue[p.ExerciseID]
		if !ok {
			return nil, ErrUnknownExercise
		}
		if err := checkPrescription(&ex, p); err != nil {
			return nil, err
		}
		out = append(out, domain.RoundExercise{
			ExerciseID:      p.ExerciseID,
			Order:           p.Order,
			PlannedWeight:   p.PlannedWeight,
			PlannedReps:     p.PlannedReps,
			PlannedDistance: p.PlannedDistance,
			PlannedTime:     p.PlannedTime,
			PlannedRPE:      p.PlannedRPE,
			TrainerNotes:    p.TrainerNotes,
		})
	}
	return out, nil
}

// checkPrescription allows values only for fields the exercise declares.
func checkPrescription(ex *domain.Exercise, p PlannedExercise) error {
	if p.Order < 0 {
		return invalidInput("exercise order must not be negative")
	}
	given := []struct {
		field   domain.ExerciseField
		present bool
		invalid bool
	}{
		{domain.FieldWeight, p.PlannedWeight != nil, p.PlannedWeight != nil && *p.PlannedWeight < 0},
		{domain.FieldReps, p.PlannedReps != nil, p.PlannedReps != nil && *p.PlannedReps < 0},
		{domain.FieldDistance, p.PlannedDistance != nil, p.PlannedDistance != nil && *p.PlannedDistance < 0},
		{domain.FieldTime, p.PlannedTime != nil, p.PlannedTime != nil && *p.PlannedTime < 0},
		{domain.FieldRPE, p.PlannedRPE != nil, p.PlannedRPE != nil && (*p.PlannedRPE < 1 || *p.PlannedRPE > 10)},
	}
	for _, g := range given {
		if !g.present {
			continue
		}
		if !ex.Requires(g.field) {
			return ErrPlannedFieldNotAllowed
		}
		if g.invalid {
			return ErrInvalidPrescription
		}
	}
	return nil
}

// cloneExercises gives each transaction attempt its own copy, since inserts assign ids.
func cloneExercises(in []domain.RoundExercise) []domain.RoundExercise {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.RoundExercise, len(in))
	copy(out, in)
	for i := range out {
		out[i].ID = primitive.NilObjectID
	}
	return out
}
