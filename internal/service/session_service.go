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

// SessionSummary is a session listed with its athlete's name.
type SessionSummary struct {
	domain.TrainingSession
	AthleteName string `json:"athleteName"`
}

// TrainerSessions are the two disjoint lists a trainer's dashboard shows, newest first.
type TrainerSessions struct {
	Waiting []SessionSummary `json:"waiting"`
	Active  []SessionSummary `json:"active"`
}

type RoundExerciseDetail struct {
	domain.RoundExercise
	Exercise *domain.Exercise `json:"exercise,omitempty"`
}

type RoundDetail struct {
	domain.SessionRound
	Exercises []RoundExerciseDetail `json:"exercises"`
}

// SessionDetail is a session with its rounds ordered by number and their exercises by order.
type SessionDetail struct {
	Session            domain.TrainingSession `json:"session"`
	AthleteName        string                 `json:"athleteName"`
	TrainerName        string                 `json:"trainerName,omitempty"`
	Rounds             []RoundDetail          `json:"rounds"`
	CurrentRoundNumber int                    `json:"currentRoundNumber"`
}

// SessionService owns the training session lifecycle.
type SessionService interface {
	StartSession(ctx context.Context, caller domain.Caller) (*domain.TrainingSession, error)
	JoinSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) (*domain.TrainingSession, error)
	CancelSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) error
	GetActiveSessionsForTrainer(ctx context.Context, caller domain.Caller) (*TrainerSessions, error)

	GetAthleteSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) (*SessionDetail, error)
	GetTrainerSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) (*SessionDetail, error)
	GetCurrentSession(ctx context.Context, caller domain.Caller) (*domain.TrainingSession, error)
	GetSessionHistory(ctx context.Context, caller domain.Caller) ([]domain.TrainingSession, error)

	// AuthorizeSubscription checks that the caller may follow the session's event channel.
	AuthorizeSubscription(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) error
}

type sessionService struct {
	stores   Stores
	notifier *notifier
	metrics  *metrics.Manager
	log      *zap.Logger
	now      func() time.Time
}

func NewSessionService(stores Stores, publisher realtime.Publisher, m *metrics.Manager, log *zap.Logger) SessionService {
	return &sessionService{
		stores:   stores,
		notifier: &notifier{publisher: publisher, metrics: m, log: log},
		metrics:  m,
		log:      log,
		now:      utcNow,
	}
}

// StartSession opens a WAITING session for the calling athlete.
// No event is published since nobody is subscribed yet.
func (s *sessionService) StartSession(ctx context.Context, caller domain.Caller) (*domain.TrainingSession, error) {
	if err := requireRole(caller, domain.RoleAthlete); err != nil {
		return nil, err
	}

	athlete, err := s.stores.Users.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load athlete: %w", err)
	}
	if !athlete.IsActive {
		return nil, ErrUnauthorized
	}
	if athlete.TrainerID == nil {
		return nil, ErrNoTrainerAssigned
	}

	_, err = s.stores.Sessions.GetOpenByAthlete(ctx, athlete.ID)
	if err == nil {
		return nil, ErrSessionAlreadyActive
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up open session: %w", err)
	}

	now := s.now()
	session := &domain.TrainingSession{
		AthleteID: athlete.ID,
		Status:    domain.SessionWaiting,
		StartedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.stores.Sessions.Create(ctx, session); err != nil {
		// lost a race with a concurrent start; the unique index decided
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSessionAlreadyActive
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.metrics.CounterSessionTransitions.WithLabelValues(string(domain.SessionWaiting)).Inc()
	s.log.Info("session started",
		zap.String("session_id", session.ID.Hex()), zap.String("athlete_id", athlete.ID.Hex()))
	return session, nil
}

// JoinSession makes the calling trainer the session's trainer and activates it.
// The athlete's client learns about it by re-reading; no event is published.
func (s *sessionService) JoinSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) (*domain.TrainingSession, error) {
	if err := requireRole(caller, domain.RoleTrainer); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	athlete, err := s.stores.Users.GetByID(ctx, session.AthleteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load athlete: %w", err)
	}
	if !athlete.HasTrainer(caller.UserID) {
		return nil, ErrNotYourAthlete
	}

	if _, ok := domain.NextSessionStatus(session.Status, domain.SessionEventJoin); !ok {
		return nil, ErrSessionNotJoinable
	}

	joined, err := s.stores.Sessions.MarkJoined(ctx, session.ID, caller.UserID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSessionNotJoinable
		}
		return nil, fmt.Errorf("join session: %w", err)
	}

	s.metrics.CounterSessionTransitions.WithLabelValues(string(domain.SessionActive)).Inc()
	s.log.Info("session joined",
		zap.String("session_id", joined.ID.Hex()), zap.String("trainer_id", caller.UserID.Hex()))
	return joined, nil
}

// CancelSession ends an open session on behalf of its athlete or its joined trainer.
func (s *sessionService) CancelSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	var by realtime.Party
	switch {
	case session.AthleteID == caller.UserID:
		by = realtime.PartyAthlete
	case session.IsJoinedTrainer(caller.UserID):
		by = realtime.PartyTrainer
	default:
		return ErrForbidden
	}

	if _, ok := domain.NextSessionStatus(session.Status, domain.SessionEventCancel); !ok {
		return ErrSessionNotCancellable
	}
	if err := s.stores.Sessions.MarkCancelled(ctx, session.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrSessionNotCancellable
		}
		return fmt.Errorf("cancel session: %w", err)
	}

	s.metrics.CounterSessionTransitions.WithLabelValues(string(domain.SessionCancelled)).Inc()
	s.log.Info("session cancelled",
		zap.String("session_id", session.ID.Hex()), zap.String("cancelled_by", string(by)))
	s.notifier.publish(ctx, session.ID, realtime.SessionCancelled(session.ID, by))
	return nil
}

// GetActiveSessionsForTrainer lists WAITING sessions of the trainer's athletes
// and ACTIVE sessions the trainer has joined.
func (s *sessionService) GetActiveSessionsForTrainer(ctx context.Context, caller domain.Caller) (*TrainerSessions, error) {
	if err := requireRole(caller, domain.RoleTrainer); err != nil {
		return nil, err
	}

	athletes, err := s.stores.Users.ListAthletesByTrainer(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(athletes))
	athleteIDs := make([]primitive.ObjectID, 0, len(athletes))
	for _, a := range athletes {
		names[a.ID] = a.Name
		athleteIDs = append(athleteIDs, a.ID)
	}

	waiting, err := s.stores.Sessions.ListByStatusForAthletes(ctx, domain.SessionWaiting, athleteIDs)
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}
	active, err := s.stores.Sessions.ListByStatusForTrainer(ctx, domain.SessionActive, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	// an athlete may have been reassigned while a session stays joined
	var missing []primitive.ObjectID
	for _, sess := range active {
		if _, ok := names[sess.AthleteID]; !ok {
			missing = append(missing, sess.AthleteID)
		}
	}
	if len(missing) > 0 {
		others, err := s.stores.Users.GetByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load athletes: %w", err)
		}
		for _, u := range others {
			names[u.ID] = u.Name
		}
	}

	return &TrainerSessions{
		Waiting: summarize(waiting, names),
		Active:  summarize(active, names),
	}, nil
}

func summarize(sessions []domain.TrainingSession, names map[primitive.ObjectID]string) []SessionSummary {
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionSummary{TrainingSession: sess, AthleteName: names[sess.AthleteID]})
	}
	return out
}

// GetAthleteSession is the athlete's view: only released and completed rounds.
func (s *sessionService) GetAthleteSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) (*SessionDetail, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.AthleteID != caller.UserID {
		return nil, ErrSessionNotFound
	}
	return s.buildDetail(ctx, session, domain.AthleteVisibleRoundStatuses)
}

// GetTrainerSession is the joined trainer's view with every round, drafts included.
func (s *sessionService) GetTrainerSession(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) (*SessionDetail, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsJoinedTrainer(caller.UserID) {
		return nil, ErrSessionNotFound
	}
	return s.buildDetail(ctx, session, nil)
}

// GetCurrentSession returns the caller's WAITING or ACTIVE session.
func (s *sessionService) GetCurrentSession(ctx context.Context, caller domain.Caller) (*domain.TrainingSession, error) {
	if err := requireRole(caller, domain.RoleAthlete); err != nil {
		return nil, err
	}
	session, err := s.stores.Sessions.GetOpenByAthlete(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("look up open session: %w", err)
	}
	return session, nil
}

func (s *sessionService) GetSessionHistory(ctx context.Context, caller domain.Caller) ([]domain.TrainingSession, error) {
	if err := requireRole(caller, domain.RoleAthlete); err != nil {
		return nil, err
	}
	sessions, err := s.stores.Sessions.ListByAthlete(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// AuthorizeSubscription admits the athlete, the joined trainer and, while
// nobody has joined, the athlete's assigned trainer.
func (s *sessionService) AuthorizeSubscription(ctx context.Context, caller domain.Caller, sessionID primitive.ObjectID) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.AthleteID == caller.UserID || session.IsJoinedTrainer(caller.UserID) {
		return nil
	}
	if session.TrainerID == nil {
		athlete, err := s.stores.Users.GetByID(ctx, session.AthleteID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load athlete: %w", err)
		}
		if err == nil && athlete.HasTrainer(caller.UserID) {
			return nil
		}
	}
	return ErrSessionNotFound
}

func (s *sessionService) getSession(ctx context.Context, id primitive.ObjectID) (*domain.TrainingSession, error) {
	session, err := s.stores.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (s *sessionService) buildDetail(ctx context.Context, session *domain.TrainingSession, statuses []domain.RoundStatus) (*SessionDetail, error) {
	detail := &SessionDetail{Session: *session, Rounds: []RoundDetail{}}

	userIDs := []primitive.ObjectID{session.AthleteID}
	if session.TrainerID != nil {
		userIDs = append(userIDs, *session.TrainerID)
	}
	users, err := s.stores.Users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	for _, u := range users {
		if u.ID == session.AthleteID {
			detail.AthleteName = u.Name
		}
		if session.IsJoinedTrainer(u.ID) {
			detail.TrainerName = u.Name
		}
	}

	rounds, err := s.stores.Rounds.ListBySession(ctx, session.ID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	if len(rounds) == 0 {
		return detail, nil
	}

	roundIDs := make([]primitive.ObjectID, 0, len(rounds))
	for _, r := range rounds {
		roundIDs = append(roundIDs, r.ID)
	}
	planned, err := s.stores.RoundExercises.ListByRounds(ctx, roundIDs)
	if err != nil {
		return nil, fmt.Errorf("list round exercises: %w", err)
	}

	catalogue, err := s.loadCatalogueEntries(ctx, planned)
	if err != nil {
		return nil, err
	}

	byRound := make(map[primitive.ObjectID][]RoundExerciseDetail, len(rounds))
	for _, re := range planned {
		entry := RoundExerciseDetail{RoundExercise: re}
		if ex, ok := catalogue[re.ExerciseID]; ok {
			entry.Exercise = &ex
		}
		byRound[re.RoundID] = append(byRound[re.RoundID], entry)
	}

	for _, r := range rounds {
		exercises := byRound[r.ID]
		if exercises == nil {
			exercises = []RoundExerciseDetail{}
		}
		detail.Rounds = append(detail.Rounds, RoundDetail{SessionRound: r, Exercises: exercises})
		if r.RoundNumber > detail.CurrentRoundNumber {
			detail.CurrentRoundNumber = r.RoundNumber
		}
	}
	return detail, nil
}

func (s *sessionService) loadCatalogueEntries(ctx context.Context, planned []domain.RoundExercise) (map[primitive.ObjectID]domain.Exercise, error) {
	seen := make(map[primitive.ObjectID]struct{}, len(planned))
	ids := make([]primitive.ObjectID, 0, len(planned))
	for _, re := range planned {
		if _, ok := seen[re.ExerciseID]; !ok {
			seen[re.ExerciseID] = struct{}{}
			ids = append(ids, re.ExerciseID)
		}
	}
	exercises, err := s.stores.Exercises.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load exercises: %w", err)
	}
	out := make(map[primitive.ObjectID]domain.Exercise, len(exercises))
	for _, ex := range exercises {
		out[ex.ID] = ex
	}
	return out, nil
}
