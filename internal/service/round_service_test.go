package service

import (
	"context"
	"testing"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (w *world) plannedSquat() PlannedExercise {
	return PlannedExercise{ExerciseID: w.squat.ID, Order: 0, PlannedWeight: floatPtr(80), PlannedReps: intPtr(5)}
}

func (w *world) plannedPlank() PlannedExercise {
	return PlannedExercise{ExerciseID: w.plank.ID, Order: 1, PlannedTime: intPtr(60), TrainerNotes: "keep the hips level"}
}

// draftRound creates a new round as w.trainer and returns its id.
func (w *world) draftRound(t *testing.T, sessionID primitive.ObjectID, isFinal bool, exercises ...PlannedExercise) primitive.ObjectID {
	t.Helper()
	id, err := w.rounds.SaveRound(context.Background(), callerOf(w.trainer), SaveRoundInput{
		SessionID:    sessionID,
		IsFinalRound: isFinal,
		Exercises:    exercises,
	})
	require.NoError(t, err)
	return id
}

func TestSaveRound_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("new draft with exercises in order", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)

		id := w.draftRound(t, session.ID, false, w.plannedPlank(), w.plannedSquat())

		round, ok := w.round(id)
		require.True(t, ok)
		assert.Equal(t, 1, round.RoundNumber)
		assert.Equal(t, domain.RoundDraft, round.Status)
		assert.False(t, round.IsFinalRound)

		exercises := w.exercisesOf(id)
		require.Len(t, exercises, 2)
		assert.Equal(t, w.squat.ID, exercises[0].ExerciseID)
		assert.Equal(t, w.plank.ID, exercises[1].ExerciseID)
		assert.Equal(t, "keep the hips level", exercises[1].TrainerNotes)
		assert.Empty(t, w.publisher.Events(), "drafts are invisible to the athlete")
	})

	t.Run("empty draft is accepted", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false)
		assert.Empty(t, w.exercisesOf(id))
	})

	t.Run("numbers are never reused or renumbered", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)

		w.draftRound(t, session.ID, false, w.plannedSquat())
		second := w.draftRound(t, session.ID, false, w.plannedSquat())
		w.draftRound(t, session.ID, false, w.plannedSquat())
		require.NoError(t, w.rounds.DeleteRound(ctx, callerOf(w.trainer), second))
		w.draftRound(t, session.ID, false, w.plannedSquat())

		rounds, err := w.db.stores().Rounds.ListBySession(ctx, session.ID, nil)
		require.NoError(t, err)
		var numbers []int
		for _, r := range rounds {
			numbers = append(numbers, r.RoundNumber)
		}
		assert.Equal(t, []int{1, 3, 4}, numbers)
	})

	t.Run("collision on the round number is retried", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		calls := 0
		w.db.hooks["Rounds.MaxRoundNumber"] = func(db *memDB) {
			calls++
			if calls == 1 {
				// a concurrent create takes number 1 after we read max
				db.hooks["Rounds.Create"] = func(db *memDB) {
					delete(db.hooks, "Rounds.Create")
					other := domain.SessionRound{ID: primitive.NewObjectID(), SessionID: session.ID, RoundNumber: 1, Status: domain.RoundDraft}
					db.rounds[other.ID] = other
				}
			}
		}

		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		assert.Equal(t, 2, calls)
		round, ok := w.round(id)
		require.True(t, ok)
		assert.Equal(t, 1, round.RoundNumber, "the colliding insert was rolled back with the transaction")
	})

	t.Run("persistent collisions give up", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		w.db.hooks["Rounds.Create"] = func(db *memDB) {
			other := domain.SessionRound{ID: primitive.NewObjectID(), SessionID: session.ID, RoundNumber: 1, Status: domain.RoundDraft}
			db.rounds[other.ID] = other
		}

		_, err := w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{SessionID: session.ID})
		assert.ErrorIs(t, err, ErrRoundBusy)
		delete(w.db.hooks, "Rounds.Create")
		rounds, err := w.db.stores().Rounds.ListBySession(ctx, session.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, rounds)
	})
}

func TestSaveRound_Rejections(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	session := w.activeSession(t)

	tests := []struct {
		name   string
		caller domain.Caller
		input  SaveRoundInput
		want   error
	}{
		{
			name:   "no identity",
			caller: domain.Caller{},
			input:  SaveRoundInput{SessionID: session.ID},
			want:   ErrUnauthorized,
		},
		{
			name:   "athlete cannot plan",
			caller: callerOf(w.athlete),
			input:  SaveRoundInput{SessionID: session.ID},
			want:   ErrForbidden,
		},
		{
			name:   "trainer that did not join",
			caller: callerOf(w.otherTrainer),
			input:  SaveRoundInput{SessionID: session.ID},
			want:   ErrForbidden,
		},
		{
			name:   "unknown session",
			caller: callerOf(w.trainer),
			input:  SaveRoundInput{SessionID: primitive.NewObjectID()},
			want:   ErrSessionNotFound,
		},
		{
			name:   "unknown exercise",
			caller: callerOf(w.trainer),
			input:  SaveRoundInput{SessionID: session.ID, Exercises: []PlannedExercise{{ExerciseID: primitive.NewObjectID()}}},
			want:   ErrUnknownExercise,
		},
		{
			name:   "value for a field the exercise does not use",
			caller: callerOf(w.trainer),
			input:  SaveRoundInput{SessionID: session.ID, Exercises: []PlannedExercise{{ExerciseID: w.plank.ID, PlannedReps: intPtr(10)}}},
			want:   ErrPlannedFieldNotAllowed,
		},
		{
			name:   "negative weight",
			caller: callerOf(w.trainer),
			input:  SaveRoundInput{SessionID: session.ID, Exercises: []PlannedExercise{{ExerciseID: w.squat.ID, PlannedWeight: floatPtr(-5)}}},
			want:   ErrInvalidPrescription,
		},
		{
			name:   "unknown round",
			caller: callerOf(w.trainer),
			input:  SaveRoundInput{SessionID: session.ID, RoundID: func() *primitive.ObjectID { id := primitive.NewObjectID(); return &id }()},
			want:   ErrRoundNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.rounds.SaveRound(ctx, tt.caller, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	rounds, err := w.db.stores().Rounds.ListBySession(ctx, session.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestSaveRound_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("draft edit replaces exercises silently", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())

		got, err := w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{
			SessionID:    session.ID,
			RoundID:      &id,
			IsFinalRound: true,
			Exercises:    []PlannedExercise{w.plannedPlank()},
		})
		require.NoError(t, err)
		assert.Equal(t, id, got)

		round, _ := w.round(id)
		assert.True(t, round.IsFinalRound)
		exercises := w.exercisesOf(id)
		require.Len(t, exercises, 1)
		assert.Equal(t, w.plank.ID, exercises[0].ExerciseID)
		assert.Empty(t, w.publisher.Events())
	})

	t.Run("released round revision notifies the athlete", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		require.NoError(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id))

		_, err := w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{
			SessionID: session.ID,
			RoundID:   &id,
			Exercises: []PlannedExercise{w.plannedSquat(), w.plannedPlank()},
		})
		require.NoError(t, err)

		round, _ := w.round(id)
		assert.Equal(t, domain.RoundReleased, round.Status)
		assert.Len(t, w.exercisesOf(id), 2)

		events := w.publisher.Events()
		require.Len(t, events, 2)
		assert.Equal(t, realtime.RoundUpdated(session.ID, id, 1), events[1].Event)
	})

	t.Run("released round cannot be emptied", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		require.NoError(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id))

		_, err := w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{
			SessionID:    session.ID,
			RoundID:      &id,
			IsFinalRound: true,
			Exercises:    []PlannedExercise{},
		})
		require.ErrorIs(t, err, ErrRoundEmpty)

		round, _ := w.round(id)
		assert.Equal(t, domain.RoundReleased, round.Status)
		assert.False(t, round.IsFinalRound)
		assert.Len(t, w.exercisesOf(id), 1)
		assert.Len(t, w.publisher.Events(), 1)
	})

	t.Run("completed round cannot be edited", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedPlank())
		require.NoError(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id))
		w.completeAll(t, id)

		_, err := w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{SessionID: session.ID, RoundID: &id})
		require.ErrorIs(t, err, ErrRoundNotEditable)
		assert.Len(t, w.exercisesOf(id), 1)
	})

	t.Run("round of another session", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false)

		second := w.addUser("Bo Athlete", domain.RoleAthlete)
		w.assign(second.ID, w.trainer.ID)
		other, err := w.sessions.StartSession(ctx, callerOf(second))
		require.NoError(t, err)
		_, err = w.sessions.JoinSession(ctx, callerOf(w.trainer), other.ID)
		require.NoError(t, err)

		_, err = w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{SessionID: other.ID, RoundID: &id})
		assert.ErrorIs(t, err, ErrRoundNotFound)
	})

	t.Run("round completed concurrently", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		require.NoError(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id))
		completeRound := func(db *memDB) {
			r := db.rounds[id]
			r.Status = domain.RoundCompleted
			db.rounds[id] = r
		}
		// the athlete's completion commits between our read and our write
		w.db.hooks["Rounds.UpdatePlan"] = func(db *memDB) {
			completeRound(db)
			db.hooks["Rounds.GetByID"] = completeRound
		}

		_, err := w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{
			SessionID: session.ID,
			RoundID:   &id,
			Exercises: []PlannedExercise{w.plannedSquat(), w.plannedPlank()},
		})
		assert.ErrorIs(t, err, ErrRoundNotEditable)
		assert.Len(t, w.exercisesOf(id), 1, "exercise list is replaced only together with the round")
	})

	t.Run("exercise replace failure keeps the old plan", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		w.db.failures["RoundExercises.ReplaceForRound"] = assert.AnError

		_, err := w.rounds.SaveRound(ctx, callerOf(w.trainer), SaveRoundInput{SessionID: session.ID, RoundID: &id, IsFinalRound: true})
		require.ErrorIs(t, err, assert.AnError)

		round, _ := w.round(id)
		assert.False(t, round.IsFinalRound)
		assert.Len(t, w.exercisesOf(id), 1)
	})
}

func TestReleaseRound(t *testing.T) {
	ctx := context.Background()

	t.Run("draft becomes visible", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat(), w.plannedPlank())

		require.NoError(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id))

		round, _ := w.round(id)
		assert.Equal(t, domain.RoundReleased, round.Status)
		require.NotNil(t, round.ReleasedAt)
		assert.Equal(t, testNow, *round.ReleasedAt)

		events := w.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, realtime.ChannelForSession(session.ID), events[0].Channel)
		assert.Equal(t, realtime.RoundReleased(session.ID, id, 1), events[0].Event)
	})

	t.Run("empty round is never released", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false)

		err := w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id)
		require.ErrorIs(t, err, ErrRoundEmpty)
		kind, _ := KindOf(err)
		assert.Equal(t, KindValidationFailed, kind)

		round, _ := w.round(id)
		assert.Equal(t, domain.RoundDraft, round.Status)
		assert.Empty(t, w.publisher.Events())
	})

	t.Run("released round cannot be released again", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		require.NoError(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id))

		err := w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id)
		require.ErrorIs(t, err, ErrRoundNotReleasable)
		kind, _ := KindOf(err)
		assert.Equal(t, KindInvalidState, kind)
		assert.Len(t, w.publisher.Events(), 1)
	})

	t.Run("only the joined trainer", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())

		assert.ErrorIs(t, w.rounds.ReleaseRound(ctx, callerOf(w.otherTrainer), id), ErrForbidden)
		assert.ErrorIs(t, w.rounds.ReleaseRound(ctx, callerOf(w.athlete), id), ErrForbidden)
		assert.ErrorIs(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), primitive.NewObjectID()), ErrRoundNotFound)
	})

	t.Run("cancelled session", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		require.NoError(t, w.sessions.CancelSession(ctx, callerOf(w.athlete), session.ID))

		assert.ErrorIs(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id), ErrSessionNotActive)
	})
}

func TestDeleteRound(t *testing.T) {
	ctx := context.Background()

	t.Run("draft and its exercises are removed", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat(), w.plannedPlank())

		require.NoError(t, w.rounds.DeleteRound(ctx, callerOf(w.trainer), id))

		_, ok := w.round(id)
		assert.False(t, ok)
		assert.Empty(t, w.exercisesOf(id))

		events := w.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, realtime.RoundDeleted(session.ID, id, 1), events[0].Event)
	})

	t.Run("released round stays", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		require.NoError(t, w.rounds.ReleaseRound(ctx, callerOf(w.trainer), id))

		err := w.rounds.DeleteRound(ctx, callerOf(w.trainer), id)
		require.ErrorIs(t, err, ErrRoundNotDeletable)
		_, ok := w.round(id)
		assert.True(t, ok)
		assert.Len(t, w.exercisesOf(id), 1)
	})

	t.Run("released concurrently keeps its exercises", func(t *testing.T) {
		w := newWorld()
		session := w.activeSession(t)
		id := w.draftRound(t, session.ID, false, w.plannedSquat())
		w.db.hooks["Rounds.DeleteDraft"] = func(db *memDB) {
			r := db.rounds[id]
			r.Status = domain.RoundReleased
			db.rounds[id] = r
		}

		err := w.rounds.DeleteRound(ctx, callerOf(w.trainer), id)
		require.ErrorIs(t, err, ErrRoundNotDeletable)
		assert.Len(t, w.exercisesOf(id), 1)
		assert.Empty(t, w.publisher.Events())
	})
}
