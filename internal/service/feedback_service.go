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

// ExerciseFeedback is the athlete's report on one exercise of the round.
type ExerciseFeedback struct {
	RoundExerciseID primitive.ObjectID
	Difficulty      domain.Difficulty
	HadPain         bool
	PainRegions     []domain.BodyRegion
	AthleteNotes    string
}

// CompletionResult tells the caller whether the round also ended the session.
type CompletionResult struct {
	Round            domain.SessionRound `json:"round"`
	SessionCompleted bool                `json:"sessionCompleted"`
}

// FeedbackService owns completing released rounds.
type FeedbackService interface {
	CompleteRound(ctx context.Context, caller domain.Caller, roundID primitive.ObjectID, feedback []ExerciseFeedback) (*CompletionResult, error)
}

type feedbackService struct {
	stores   Stores
	notifier *notifier
	metrics  *metrics.Manager
	log      *zap.Logger
	now      func() time.Time
}

func NewFeedbackService(stores Stores, publisher realtime.Publisher, m *metrics.Manager, log *zap.Logger) FeedbackService {
	return &feedbackService{
		stores:   stores,
		notifier: &notifier{publisher: publisher, metrics: m, log: log},
		metrics:  m,
		log:      log,
		now:      utcNow,
	}
}

// CompleteRound writes the feedback of every exercise, completes the round and,
// for the final round, the session. All of it commits together or not at all.
func (s *feedbackService) CompleteRound(ctx context.Context, caller domain.Caller, roundID primitive.ObjectID, feedback []ExerciseFeedback) (*CompletionResult, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}

	round, err := s.stores.Rounds.GetByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("load round: %w", err)
	}
	session, err := s.stores.Sessions.GetByID(ctx, round.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.AthleteID != caller.UserID {
		return nil, ErrForbidden
	}
	if !domain.RoundAllows(round.Status, domain.RoundEventComplete) {
		return nil, ErrRoundNotCompletable
	}
	if session.Status != domain.SessionActive {
		return nil, ErrSessionNotActive
	}

	planned, err := s.stores.RoundExercises.ListByRound(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("list round exercises: %w", err)
	}
	if err := validateFeedback(planned, feedback); err != nil {
		return nil, err
	}

	now := s.now()
	var completed *domain.SessionRound
	err = s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, fb := range feedback {
			err := s.stores.RoundExercises.SaveFeedback(ctx, fb.RoundExerciseID, round.ID, domain.Feedback{
				Difficulty:   fb.Difficulty,
				HadPain:      fb.HadPain,
				PainRegions:  fb.PainRegions,
				AthleteNotes: fb.AthleteNotes,
			}, now)
			if err != nil {
				return err
			}
		}

		var err error
		completed, err = s.stores.Rounds.MarkCompleted(ctx, round.ID, now)
		if err != nil {
			return err
		}
		// the flag committed on the round decides, not the copy read before the transaction
		if completed.IsFinalRound {
			return s.stores.Sessions.MarkCompleted(ctx, session.ID, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRoundNotCompletable
		}
		return nil, fmt.Errorf("complete round: %w", err)
	}

	s.metrics.CounterRoundTransitions.WithLabelValues(string(domain.RoundEventComplete)).Inc()
	events := []realtime.Event{realtime.RoundCompleted(session.ID, completed.ID, completed.RoundNumber)}
	if completed.IsFinalRound {
		s.metrics.CounterSessionTransitions.WithLabelValues(string(domain.SessionCompleted)).Inc()
		events = append(events, realtime.SessionCompleted(session.ID))
	}

	s.log.Info("round completed",
		zap.String("session_id", session.ID.Hex()),
		zap.String("round_id", completed.ID.Hex()),
		zap.Int("round_number", completed.RoundNumber),
		zap.Bool("session_completed", completed.IsFinalRound))
	s.notifier.publish(ctx, session.ID, events...)

	return &CompletionResult{Round: *completed, SessionCompleted: completed.IsFinalRound}, nil
}

// validateFeedback requires exactly one well-formed entry per planned exercise.
// Any invalid entry rejects the whole batch.
func validateFeedback(planned []domain.RoundExercise, feedback []ExerciseFeedback) error {
	if len(planned) == 0 {
		return ErrRoundEmpty
	}
	if len(feedback) != len(planned) {
		return ErrFeedbackCountMismatch
	}

	remaining := make(map[primitive.ObjectID]struct{}, len(planned))
	for _, re := range planned {
		remaining[re.ID] = struct{}{}
	}

	for _, fb := range feedback {
		if _, ok := remaining[fb.RoundExerciseID]; !ok {
			return ErrFeedbackExerciseMismatch
		}
		delete(remaining, fb.RoundExerciseID)

		if !fb.Difficulty.IsValid() {
			return ErrInvalidDifficulty
		}
		if fb.HadPain && len(fb.PainRegions) == 0 {
			return ErrPainRegionRequired
		}
		if !fb.HadPain && len(fb.PainRegions) > 0 {
			return ErrUnexpectedPainRegions
		}
		for _, region := range fb.PainRegions {
			if !region.IsValid() {
				return ErrInvalidBodyRegion
			}
		}
	}
	return nil
}
