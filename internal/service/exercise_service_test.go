package service

import (
	"context"
	"strings"
	"testing"

	"alcyxob/coach-sessions/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testVideoMax = 10 << 20

func newExerciseFixture() (*world, ExerciseService, *fakeStorage) {
	w := newWorld()
	files := newFakeStorage()
	stores := w.db.stores()
	svc := NewExerciseService(stores.Exercises, stores.RoundExercises, files, testVideoMax, zap.NewNop())
	svc.(*exerciseService).now = fixedClock
	return w, svc, files
}

func TestExerciseService_Catalogue(t *testing.T) {
	ctx := context.Background()
	w, svc, _ := newExerciseFixture()
	admin := callerOf(w.admin)

	created, err := svc.CreateExercise(ctx, admin, ExerciseInput{
		Name:           "  Farmer carry ",
		Category:       domain.CategoryCustom,
		CustomCategory: "Strongman",
		RequiredFields: []domain.ExerciseField{domain.FieldWeight, domain.FieldDistance, domain.FieldWeight},
	})
	require.NoError(t, err)
	assert.Equal(t, "Farmer carry", created.Name)
	assert.Equal(t, []domain.ExerciseField{domain.FieldWeight, domain.FieldDistance}, created.RequiredFields)
	assert.Equal(t, w.admin.ID, created.CreatedBy)

	list, err := svc.ListExercises(ctx, callerOf(w.athlete))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, domain.CategoryCore, list[0].Category)

	updated, err := svc.UpdateExercise(ctx, admin, created.ID, ExerciseInput{
		Name:           "Farmer walk",
		Category:       domain.CategoryLegs,
		CustomCategory: "ignored",
		RequiredFields: []domain.ExerciseField{domain.FieldTime},
	})
	require.NoError(t, err)
	assert.Equal(t, "Farmer walk", updated.Name)
	assert.Empty(t, updated.CustomCategory)

	got, err := svc.GetExercise(ctx, callerOf(w.trainer), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryLegs, got.Category)

	_, err = svc.ListExercises(ctx, domain.Caller{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestExerciseService_Validation(t *testing.T) {
	ctx := context.Background()
	w, svc, _ := newExerciseFixture()

	tests := []struct {
		name string
		in   ExerciseInput
	}{
		{"no name", ExerciseInput{Category: domain.CategoryCore, RequiredFields: []domain.ExerciseField{domain.FieldTime}}},
		{"unknown category", ExerciseInput{Name: "X", Category: "FEET", RequiredFields: []domain.ExerciseField{domain.FieldTime}}},
		{"custom without label", ExerciseInput{Name: "X", Category: domain.CategoryCustom, RequiredFields: []domain.ExerciseField{domain.FieldTime}}},
		{"no fields", ExerciseInput{Name: "X", Category: domain.CategoryCore}},
		{"unknown field", ExerciseInput{Name: "X", Category: domain.CategoryCore, RequiredFields: []domain.ExerciseField{"SPEED"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateExercise(ctx, callerOf(w.admin), tt.in)
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, KindValidationFailed, kind)
		})
	}

	_, err := svc.CreateExercise(ctx, callerOf(w.trainer), ExerciseInput{Name: "X", Category: domain.CategoryCore, RequiredFields: []domain.ExerciseField{domain.FieldTime}})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExerciseService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("planned exercise is kept", func(t *testing.T) {
		w, svc, _ := newExerciseFixture()
		session := w.activeSession(t)
		w.draftRound(t, session.ID, false, w.plannedSquat())

		err := svc.DeleteExercise(ctx, callerOf(w.admin), w.squat.ID)
		require.ErrorIs(t, err, ErrExerciseInUse)
		kind, _ := KindOf(err)
		assert.Equal(t, KindPreconditionFailed, kind)
		_, ok := w.db.exercises[w.squat.ID]
		assert.True(t, ok)
	})

	t.Run("unused exercise and its video are removed", func(t *testing.T) {
		w, svc, files := newExerciseFixture()
		ex := w.db.exercises[w.plank.ID]
		ex.VideoKey = "exercises/" + ex.ID.Hex() + "/demo.mp4"
		w.db.exercises[ex.ID] = ex
		files.objects[ex.VideoKey] = 1024

		require.NoError(t, svc.DeleteExercise(ctx, callerOf(w.admin), w.plank.ID))
		_, ok := w.db.exercises[w.plank.ID]
		assert.False(t, ok)
		assert.Equal(t, []string{ex.VideoKey}, files.deleted)
	})

	t.Run("unknown exercise", func(t *testing.T) {
		w, svc, _ := newExerciseFixture()
		assert.ErrorIs(t, svc.DeleteExercise(ctx, callerOf(w.admin), primitive.NewObjectID()), ErrExerciseNotFound)
	})
}

func TestExerciseService_Video(t *testing.T) {
	ctx := context.Background()

	t.Run("upload, confirm and download", func(t *testing.T) {
		w, svc, files := newExerciseFixture()
		admin := callerOf(w.admin)

		ticket, err := svc.RequestVideoUpload(ctx, admin, w.plank.ID, "video/mp4", 2048)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ticket.ObjectKey, "exercises/"+w.plank.ID.Hex()+"/"))
		assert.True(t, strings.HasSuffix(ticket.ObjectKey, ".mp4"))
		assert.Contains(t, ticket.UploadURL, ticket.ObjectKey)
		assert.True(t, ticket.ExpiresAt.After(testNow))

		_, err = svc.ConfirmVideoUpload(ctx, admin, w.plank.ID, ticket.ObjectKey)
		assert.ErrorIs(t, err, ErrVideoNotUploaded)

		files.objects[ticket.ObjectKey] = 2048
		ex, err := svc.ConfirmVideoUpload(ctx, admin, w.plank.ID, ticket.ObjectKey)
		require.NoError(t, err)
		assert.Equal(t, ticket.ObjectKey, ex.VideoKey)

		url, err := svc.GetVideoURL(ctx, callerOf(w.athlete), w.plank.ID)
		require.NoError(t, err)
		assert.Contains(t, url, ticket.ObjectKey)

		// a replacement removes the old object
		second, err := svc.RequestVideoUpload(ctx, admin, w.plank.ID, "video/webm", 4096)
		require.NoError(t, err)
		files.objects[second.ObjectKey] = 4096
		_, err = svc.ConfirmVideoUpload(ctx, admin, w.plank.ID, second.ObjectKey)
		require.NoError(t, err)
		assert.Equal(t, []string{ticket.ObjectKey}, files.deleted)

		require.NoError(t, svc.DeleteVideo(ctx, admin, w.plank.ID))
		_, err = svc.GetVideoURL(ctx, callerOf(w.athlete), w.plank.ID)
		assert.ErrorIs(t, err, ErrExerciseHasNoVideo)
	})

	t.Run("rejected uploads", func(t *testing.T) {
		w, svc, files := newExerciseFixture()
		admin := callerOf(w.admin)

		_, err := svc.RequestVideoUpload(ctx, admin, w.plank.ID, "image/png", 100)
		assert.ErrorIs(t, err, ErrInvalidVideo)
		_, err = svc.RequestVideoUpload(ctx, admin, w.plank.ID, "video/mp4", testVideoMax+1)
		assert.ErrorIs(t, err, ErrVideoTooLarge)
		_, err = svc.RequestVideoUpload(ctx, admin, primitive.NewObjectID(), "video/mp4", 100)
		assert.ErrorIs(t, err, ErrExerciseNotFound)
		_, err = svc.RequestVideoUpload(ctx, callerOf(w.trainer), w.plank.ID, "video/mp4", 100)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = svc.ConfirmVideoUpload(ctx, admin, w.plank.ID, "exercises/"+w.squat.ID.Hex()+"/x.mp4")
		kind, _ := KindOf(err)
		assert.Equal(t, KindValidationFailed, kind, "key issued for another exercise")

		// the stored object turned out bigger than declared
		ticket, err := svc.RequestVideoUpload(ctx, admin, w.plank.ID, "video/mp4", 100)
		require.NoError(t, err)
		files.objects[ticket.ObjectKey] = testVideoMax + 1
		_, err = svc.ConfirmVideoUpload(ctx, admin, w.plank.ID, ticket.ObjectKey)
		assert.ErrorIs(t, err, ErrVideoTooLarge)
		assert.Empty(t, w.db.exercises[w.plank.ID].VideoKey)
		assert.Contains(t, files.deleted, ticket.ObjectKey)
	})
}
