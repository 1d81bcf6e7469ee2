package service

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/metrics"
	"alcyxob/coach-sessions/internal/realtime"
	"alcyxob/coach-sessions/internal/repository"
	"alcyxob/coach-sessions/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// memDB is a map-backed store that mimics the conditional writes of the Mongo
// repositories. Transactions snapshot every table and restore it on error.
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users          map[primitive.ObjectID]domain.User
	exercises      map[primitive.ObjectID]domain.Exercise
	sessions       map[primitive.ObjectID]domain.TrainingSession
	rounds         map[primitive.ObjectID]domain.SessionRound
	roundExercises map[primitive.ObjectID]domain.RoundExercise
	weights        map[primitive.ObjectID]domain.WeightEntry

	// failures makes the named operation fail with the given error.
	failures map[string]error
	// hooks run with the lock held right before the named operation.
	hooks map[string]func(db *memDB)
}

func newMemDB() *memDB {
	return &memDB{
		users:          map[primitive.ObjectID]domain.User{},
		exercises:      map[primitive.ObjectID]domain.Exercise{},
		sessions:       map[primitive.ObjectID]domain.TrainingSession{},
		rounds:         map[primitive.ObjectID]domain.SessionRound{},
		roundExercises: map[primitive.ObjectID]domain.RoundExercise{},
		weights:        map[primitive.ObjectID]domain.WeightEntry{},
		failures:       map[string]error{},
		hooks:          map[string]func(db *memDB){},
	}
}

// enter locks the store and runs the hooks and failures registered for op.
func (db *memDB) enter(op string) (func(), error) {
	db.mu.Lock()
	if hook, ok := db.hooks[op]; ok {
		hook(db)
	}
	if err, ok := db.failures[op]; ok {
		return db.mu.Unlock, err
	}
	return db.mu.Unlock, nil
}

func (db *memDB) stores() Stores {
	return Stores{
		Users:          &memUsers{db},
		Exercises:      &memExercises{db},
		Sessions:       &memSessions{db},
		Rounds:         &memRounds{db},
		RoundExercises: &memRoundExercises{db},
		Weights:        &memWeights{db},
		Tx:             &memTx{db},
	}
}

type memSnapshot struct {
	users          map[primitive.ObjectID]domain.User
	exercises      map[primitive.ObjectID]domain.Exercise
	sessions       map[primitive.ObjectID]domain.TrainingSession
	rounds         map[primitive.ObjectID]domain.SessionRound
	roundExercises map[primitive.ObjectID]domain.RoundExercise
	weights        map[primitive.ObjectID]domain.WeightEntry
}

type memTx struct{ db *memDB }

func (t *memTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.mu.Lock()
	snap := memSnapshot{
		users:          maps.Clone(t.db.users),
		exercises:      maps.Clone(t.db.exercises),
		sessions:       maps.Clone(t.db.sessions),
		rounds:         maps.Clone(t.db.rounds),
		roundExercises: maps.Clone(t.db.roundExercises),
		weights:        maps.Clone(t.db.weights),
	}
	t.db.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.db.mu.Lock()
		t.db.users = snap.users
		t.db.exercises = snap.exercises
		t.db.sessions = snap.sessions
		t.db.rounds = snap.rounds
		t.db.roundExercises = snap.roundExercises
		t.db.weights = snap.weights
		t.db.mu.Unlock()
		return err
	}
	return nil
}

// --- users ---

type memUsers struct{ db *memDB }

func (r *memUsers) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	unlock, err := r.db.enter("Users.Create")
	defer unlock()
	if err != nil {
		return primitive.NilObjectID, err
	}
	for _, u := range r.db.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.db.users[user.ID] = *user
	return user.ID, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	unlock, err := r.db.enter("Users.GetByEmail")
	defer unlock()
	if err != nil {
		return nil, err
	}
	for _, u := range r.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	unlock, err := r.db.enter("Users.GetByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	unlock, err := r.db.enter("Users.GetByIDs")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUsers) List(ctx context.Context) ([]domain.User, error) {
	unlock, err := r.db.enter("Users.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memUsers) ListAthletesByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	unlock, err := r.db.enter("Users.ListAthletesByTrainer")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.User
	for _, u := range r.db.users {
		if u.HasTrainer(trainerID) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memUsers) update(op string, id primitive.ObjectID, apply func(u *domain.User)) error {
	unlock, err := r.db.enter(op)
	defer unlock()
	if err != nil {
		return err
	}
	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	apply(&u)
	r.db.users[id] = u
	return nil
}

func (r *memUsers) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	return r.update("Users.SetActive", id, func(u *domain.User) { u.IsActive = active })
}

func (r *memUsers) SetRoles(ctx context.Context, id primitive.ObjectID, roles domain.Roles) error {
	return r.update("Users.SetRoles", id, func(u *domain.User) { u.Roles = roles })
}

func (r *memUsers) SetTrainer(ctx context.Context, athleteID primitive.ObjectID, trainerID *primitive.ObjectID) error {
	return r.update("Users.SetTrainer", athleteID, func(u *domain.User) { u.TrainerID = trainerID })
}

func (r *memUsers) UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.update("Users.UpdatePasswordHash", id, func(u *domain.User) { u.PasswordHash = hash })
}

// --- exercises ---

type memExercises struct{ db *memDB }

func (r *memExercises) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	unlock, err := r.db.enter("Exercises.Create")
	defer unlock()
	if err != nil {
		return primitive.NilObjectID, err
	}
	if exercise.ID.IsZero() {
		exercise.ID = primitive.NewObjectID()
	}
	r.db.exercises[exercise.ID] = *exercise
	return exercise.ID, nil
}

func (r *memExercises) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	unlock, err := r.db.enter("Exercises.GetByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	ex, ok := r.db.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ex, nil
}

func (r *memExercises) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	unlock, err := r.db.enter("Exercises.GetByIDs")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.Exercise
	for _, id := range ids {
		if ex, ok := r.db.exercises[id]; ok {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (r *memExercises) List(ctx context.Context) ([]domain.Exercise, error) {
	unlock, err := r.db.enter("Exercises.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Exercise, 0, len(r.db.exercises))
	for _, ex := range r.db.exercises {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *memExercises) Update(ctx context.Context, exercise *domain.Exercise) error {
	unlock, err := r.db.enter("Exercises.Update")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.db.exercises[exercise.ID]; !ok {
		return repository.ErrNotFound
	}
	r.db.exercises[exercise.ID] = *exercise
	return nil
}

func (r *memExercises) SetVideoKey(ctx context.Context, id primitive.ObjectID, key string) error {
	unlock, err := r.db.enter("Exercises.SetVideoKey")
	defer unlock()
	if err != nil {
		return err
	}
	ex, ok := r.db.exercises[id]
	if !ok {
		return repository.ErrNotFound
	}
	ex.VideoKey = key
	r.db.exercises[id] = ex
	return nil
}

func (r *memExercises) Delete(ctx context.Context, id primitive.ObjectID) error {
	unlock, err := r.db.enter("Exercises.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	if _, ok := r.db.exercises[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.exercises, id)
	return nil
}

// --- sessions ---

type memSessions struct{ db *memDB }

func (r *memSessions) Create(ctx context.Context, session *domain.TrainingSession) (primitive.ObjectID, error) {
	unlock, err := r.db.enter("Sessions.Create")
	defer unlock()
	if err != nil {
		return primitive.NilObjectID, err
	}
	for _, s := range r.db.sessions {
		if s.AthleteID == session.AthleteID && s.Status.IsOpen() {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	r.db.sessions[session.ID] = *session
	return session.ID, nil
}

func (r *memSessions) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingSession, error) {
	unlock, err := r.db.enter("Sessions.GetByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	s, ok := r.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *memSessions) GetOpenByAthlete(ctx context.Context, athleteID primitive.ObjectID) (*domain.TrainingSession, error) {
	unlock, err := r.db.enter("Sessions.GetOpenByAthlete")
	defer unlock()
	if err != nil {
		return nil, err
	}
	for _, s := range r.db.sessions {
		if s.AthleteID == athleteID && s.Status.IsOpen() {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSessions) list(op string, match func(s domain.TrainingSession) bool) ([]domain.TrainingSession, error) {
	unlock, err := r.db.enter(op)
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.TrainingSession
	for _, s := range r.db.sessions {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *memSessions) ListByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.TrainingSession, error) {
	return r.list("Sessions.ListByAthlete", func(s domain.TrainingSession) bool {
		return s.AthleteID == athleteID
	})
}

func (r *memSessions) ListByStatusForAthletes(ctx context.Context, status domain.SessionStatus, athleteIDs []primitive.ObjectID) ([]domain.TrainingSession, error) {
	ids := make(map[primitive.ObjectID]bool, len(athleteIDs))
	for _, id := range athleteIDs {
		ids[id] = true
	}
	return r.list("Sessions.ListByStatusForAthletes", func(s domain.TrainingSession) bool {
		return s.Status == status && ids[s.AthleteID]
	})
}

func (r *memSessions) ListByStatusForTrainer(ctx context.Context, status domain.SessionStatus, trainerID primitive.ObjectID) ([]domain.TrainingSession, error) {
	return r.list("Sessions.ListByStatusForTrainer", func(s domain.TrainingSession) bool {
		return s.Status == status && s.IsJoinedTrainer(trainerID)
	})
}

func (r *memSessions) transition(op string, id primitive.ObjectID, from []domain.SessionStatus, apply func(s *domain.TrainingSession)) (*domain.TrainingSession, error) {
	unlock, err := r.db.enter(op)
	defer unlock()
	if err != nil {
		return nil, err
	}
	s, ok := r.db.sessions[id]
	if !ok || !contains(from, s.Status) {
		return nil, repository.ErrConflict
	}
	apply(&s)
	r.db.sessions[id] = s
	return &s, nil
}

func (r *memSessions) MarkJoined(ctx context.Context, id, trainerID primitive.ObjectID, at time.Time) (*domain.TrainingSession, error) {
	return r.transition("Sessions.MarkJoined", id, []domain.SessionStatus{domain.SessionWaiting}, func(s *domain.TrainingSession) {
		s.Status = domain.SessionActive
		s.TrainerID = &trainerID
		s.JoinedAt = &at
		s.UpdatedAt = at
	})
}

func (r *memSessions) MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.transition("Sessions.MarkCompleted", id, domain.SessionStatusesAllowing(domain.SessionEventComplete), func(s *domain.TrainingSession) {
		s.Status = domain.SessionCompleted
		s.CompletedAt = &at
		s.UpdatedAt = at
	})
	return err
}

func (r *memSessions) MarkCancelled(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.transition("Sessions.MarkCancelled", id, domain.SessionStatusesAllowing(domain.SessionEventCancel), func(s *domain.TrainingSession) {
		s.Status = domain.SessionCancelled
		s.UpdatedAt = at
	})
	return err
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// --- rounds ---

type memRounds struct{ db *memDB }

func (r *memRounds) Create(ctx context.Context, round *domain.SessionRound) (primitive.ObjectID, error) {
	unlock, err := r.db.enter("Rounds.Create")
	defer unlock()
	if err != nil {
		return primitive.NilObjectID, err
	}
	for _, existing := range r.db.rounds {
		if existing.SessionID == round.SessionID && existing.RoundNumber == round.RoundNumber {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	if round.ID.IsZero() {
		round.ID = primitive.NewObjectID()
	}
	r.db.rounds[round.ID] = *round
	return round.ID, nil
}

func (r *memRounds) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.SessionRound, error) {
	unlock, err := r.db.enter("Rounds.GetByID")
	defer unlock()
	if err != nil {
		return nil, err
	}
	round, ok := r.db.rounds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &round, nil
}

func (r *memRounds) ListBySession(ctx context.Context, sessionID primitive.ObjectID, statuses []domain.RoundStatus) ([]domain.SessionRound, error) {
	unlock, err := r.db.enter("Rounds.ListBySession")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.SessionRound
	for _, round := range r.db.rounds {
		if round.SessionID != sessionID {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, round.Status) {
			continue
		}
		out = append(out, round)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *memRounds) MaxRoundNumber(ctx context.Context, sessionID primitive.ObjectID) (int, error) {
	unlock, err := r.db.enter("Rounds.MaxRoundNumber")
	defer unlock()
	if err != nil {
		return 0, err
	}
	maxNumber := 0
	for _, round := range r.db.rounds {
		if round.SessionID == sessionID && round.RoundNumber > maxNumber {
			maxNumber = round.RoundNumber
		}
	}
	return maxNumber, nil
}

func (r *memRounds) transition(op string, id primitive.ObjectID, from []domain.RoundStatus, apply func(round *domain.SessionRound)) (*domain.SessionRound, error) {
	unlock, err := r.db.enter(op)
	defer unlock()
	if err != nil {
		return nil, err
	}
	round, ok := r.db.rounds[id]
	if !ok || !contains(from, round.Status) {
		return nil, repository.ErrConflict
	}
	apply(&round)
	r.db.rounds[id] = round
	return &round, nil
}

func (r *memRounds) UpdatePlan(ctx context.Context, id primitive.ObjectID, from []domain.RoundStatus, isFinal bool, at time.Time) (*domain.SessionRound, error) {
	return r.transition("Rounds.UpdatePlan", id, from, func(round *domain.SessionRound) {
		round.IsFinalRound = isFinal
		round.UpdatedAt = at
	})
}

func (r *memRounds) MarkReleased(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.SessionRound, error) {
	return r.transition("Rounds.MarkReleased", id, []domain.RoundStatus{domain.RoundDraft}, func(round *domain.SessionRound) {
		round.Status = domain.RoundReleased
		round.ReleasedAt = &at
		round.UpdatedAt = at
	})
}

func (r *memRounds) MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.SessionRound, error) {
	return r.transition("Rounds.MarkCompleted", id, []domain.RoundStatus{domain.RoundReleased}, func(round *domain.SessionRound) {
		round.Status = domain.RoundCompleted
		round.CompletedAt = &at
		round.UpdatedAt = at
	})
}

func (r *memRounds) DeleteDraft(ctx context.Context, id primitive.ObjectID) error {
	unlock, err := r.db.enter("Rounds.DeleteDraft")
	defer unlock()
	if err != nil {
		return err
	}
	round, ok := r.db.rounds[id]
	if !ok || round.Status != domain.RoundDraft {
		return repository.ErrConflict
	}
	delete(r.db.rounds, id)
	return nil
}

// --- round exercises ---

type memRoundExercises struct{ db *memDB }

func (r *memRoundExercises) ReplaceForRound(ctx context.Context, roundID primitive.ObjectID, exercises []domain.RoundExercise) error {
	unlock, err := r.db.enter("RoundExercises.ReplaceForRound")
	defer unlock()
	if err != nil {
		return err
	}
	for id, re := range r.db.roundExercises {
		if re.RoundID == roundID {
			delete(r.db.roundExercises, id)
		}
	}
	for i := range exercises {
		exercises[i].ID = primitive.NewObjectID()
		exercises[i].RoundID = roundID
		r.db.roundExercises[exercises[i].ID] = exercises[i]
	}
	return nil
}

func (r *memRoundExercises) ListByRound(ctx context.Context, roundID primitive.ObjectID) ([]domain.RoundExercise, error) {
	return r.ListByRounds(ctx, []primitive.ObjectID{roundID})
}

func (r *memRoundExercises) ListByRounds(ctx context.Context, roundIDs []primitive.ObjectID) ([]domain.RoundExercise, error) {
	unlock, err := r.db.enter("RoundExercises.List")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.RoundExercise
	for _, re := range r.db.roundExercises {
		if contains(roundIDs, re.RoundID) {
			out = append(out, re)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundID != out[j].RoundID {
			return out[i].RoundID.Hex() < out[j].RoundID.Hex()
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (r *memRoundExercises) count(op string, match func(re domain.RoundExercise) bool) (int64, error) {
	unlock, err := r.db.enter(op)
	defer unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, re := range r.db.roundExercises {
		if match(re) {
			n++
		}
	}
	return n, nil
}

func (r *memRoundExercises) CountByRound(ctx context.Context, roundID primitive.ObjectID) (int64, error) {
	return r.count("RoundExercises.CountByRound", func(re domain.RoundExercise) bool { return re.RoundID == roundID })
}

func (r *memRoundExercises) CountByExercise(ctx context.Context, exerciseID primitive.ObjectID) (int64, error) {
	return r.count("RoundExercises.CountByExercise", func(re domain.RoundExercise) bool { return re.ExerciseID == exerciseID })
}

func (r *memRoundExercises) SaveFeedback(ctx context.Context, id, roundID primitive.ObjectID, feedback domain.Feedback, at time.Time) error {
	unlock, err := r.db.enter("RoundExercises.SaveFeedback")
	defer unlock()
	if err != nil {
		return err
	}
	re, ok := r.db.roundExercises[id]
	if !ok || re.RoundID != roundID || re.CompletedAt != nil {
		return repository.ErrConflict
	}
	difficulty := feedback.Difficulty
	re.Difficulty = &difficulty
	re.HadPain = feedback.HadPain
	re.PainRegions = feedback.PainRegions
	re.AthleteNotes = feedback.AthleteNotes
	re.CompletedAt = &at
	r.db.roundExercises[id] = re
	return nil
}

func (r *memRoundExercises) DeleteByRound(ctx context.Context, roundID primitive.ObjectID) error {
	unlock, err := r.db.enter("RoundExercises.DeleteByRound")
	defer unlock()
	if err != nil {
		return err
	}
	for id, re := range r.db.roundExercises {
		if re.RoundID == roundID {
			delete(r.db.roundExercises, id)
		}
	}
	return nil
}

// --- weights ---

type memWeights struct{ db *memDB }

func (r *memWeights) Create(ctx context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error) {
	unlock, err := r.db.enter("Weights.Create")
	defer unlock()
	if err != nil {
		return primitive.NilObjectID, err
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	r.db.weights[entry.ID] = *entry
	return entry.ID, nil
}

func (r *memWeights) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.WeightEntry, error) {
	unlock, err := r.db.enter("Weights.ListByUser")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.WeightEntry
	for _, e := range r.db.weights {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *memWeights) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	unlock, err := r.db.enter("Weights.Delete")
	defer unlock()
	if err != nil {
		return err
	}
	e, ok := r.db.weights[id]
	if !ok || e.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.db.weights, id)
	return nil
}

// --- collaborators ---

type publishedEvent struct {
	Channel string
	Event   realtime.Event
}

// recordingPublisher keeps every event it is asked to publish.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{Channel: channel, Event: ev})
	return nil
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// fakeStorage is an object store holding only sizes.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]int64
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]int64{}}
}

func (f *fakeStorage) GeneratePresignedUploadURL(ctx context.Context, objectKey, contentType string, expires time.Duration) (string, error) {
	return "https://storage.test/upload/" + objectKey, nil
}

func (f *fakeStorage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	return "https://storage.test/download/" + objectKey, nil
}

func (f *fakeStorage) ObjectSize(ctx context.Context, objectKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.objects[objectKey]
	if !ok {
		return 0, storage.ErrObjectNotFound
	}
	return size, nil
}

func (f *fakeStorage) DeleteObject(ctx context.Context, objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectKey)
	f.deleted = append(f.deleted, objectKey)
	return nil
}

// --- fixtures ---

// world is a seeded store with a trainer, an assigned athlete and a few exercises.
type world struct {
	db        *memDB
	publisher *recordingPublisher
	metrics   *metrics.Manager

	admin, trainer, otherTrainer, athlete, loneAthlete domain.User
	squat, plank                                       domain.Exercise

	sessions SessionService
	rounds   RoundService
	feedback FeedbackService
}

func newWorld() *world {
	w := &world{
		db:        newMemDB(),
		publisher: &recordingPublisher{},
		metrics:   metrics.NewTestManager(),
	}

	w.admin = w.addUser("Ada Admin", domain.RoleAdmin)
	w.trainer = w.addUser("Tom Trainer", domain.RoleTrainer)
	w.otherTrainer = w.addUser("Olga Trainer", domain.RoleTrainer)
	w.athlete = w.addUser("Alex Athlete", domain.RoleAthlete)
	w.loneAthlete = w.addUser("Lee Athlete", domain.RoleAthlete)
	w.assign(w.athlete.ID, w.trainer.ID)

	w.squat = w.addExercise("Back squat", domain.CategoryLegs, domain.FieldWeight, domain.FieldReps)
	w.plank = w.addExercise("Plank", domain.CategoryCore, domain.FieldTime)

	log := zap.NewNop()
	stores := w.db.stores()

	sessions := NewSessionService(stores, w.publisher, w.metrics, log)
	sessions.(*sessionService).now = fixedClock
	rounds := NewRoundService(stores, w.publisher, w.metrics, log)
	rounds.(*roundService).now = fixedClock
	feedback := NewFeedbackService(stores, w.publisher, w.metrics, log)
	feedback.(*feedbackService).now = fixedClock

	w.sessions, w.rounds, w.feedback = sessions, rounds, feedback
	return w
}

func (w *world) addUser(name string, roles ...domain.Role) domain.User {
	u := domain.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     primitive.NewObjectID().Hex() + "@example.com",
		Roles:     roles,
		IsActive:  true,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	w.db.users[u.ID] = u
	return u
}

func (w *world) assign(athleteID, trainerID primitive.ObjectID) {
	u := w.db.users[athleteID]
	u.TrainerID = &trainerID
	w.db.users[athleteID] = u
}

func (w *world) addExercise(name string, category domain.Category, fields ...domain.ExerciseField) domain.Exercise {
	ex := domain.Exercise{
		ID:             primitive.NewObjectID(),
		Name:           name,
		Category:       category,
		RequiredFields: fields,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	w.db.exercises[ex.ID] = ex
	return ex
}

func callerOf(u domain.User) domain.Caller {
	return domain.Caller{UserID: u.ID, Roles: u.Roles}
}

func (w *world) session(id primitive.ObjectID) domain.TrainingSession {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	return w.db.sessions[id]
}

func (w *world) round(id primitive.ObjectID) (domain.SessionRound, bool) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	r, ok := w.db.rounds[id]
	return r, ok
}

func (w *world) exercisesOf(roundID primitive.ObjectID) []domain.RoundExercise {
	out, _ := w.db.stores().RoundExercises.ListByRound(context.Background(), roundID)
	return out
}

func (w *world) countSessions() int {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	return len(w.db.sessions)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
