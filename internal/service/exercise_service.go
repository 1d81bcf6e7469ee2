package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"
	"alcyxob/coach-sessions/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ExerciseInput struct {
	Name           string
	Category       domain.Category
	CustomCategory string
	RequiredFields []domain.ExerciseField
}

// VideoUploadTicket tells the client where to PUT the video.
type VideoUploadTicket struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExerciseService manages the exercise catalogue and its demo videos.
// Reads need any identity, writes need ADMIN.
type ExerciseService interface {
	ListExercises(ctx context.Context, caller domain.Caller) ([]domain.Exercise, error)
	GetExercise(ctx context.Context, caller domain.Caller, id primitive.ObjectID) (*domain.Exercise, error)
	CreateExercise(ctx context.Context, caller domain.Caller, in ExerciseInput) (*domain.Exercise, error)
	UpdateExercise(ctx context.Context, caller domain.Caller, id primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error)
	DeleteExercise(ctx context.Context, caller domain.Caller, id primitive.ObjectID) error

	RequestVideoUpload(ctx context.Context, caller domain.Caller, id primitive.ObjectID, contentType string, size int64) (*VideoUploadTicket, error)
	ConfirmVideoUpload(ctx context.Context, caller domain.Caller, id primitive.ObjectID, objectKey string) (*domain.Exercise, error)
	GetVideoURL(ctx context.Context, caller domain.Caller, id primitive.ObjectID) (string, error)
	DeleteVideo(ctx context.Context, caller domain.Caller, id primitive.ObjectID) error
}

// exerciseService implements the ExerciseService interface.
type exerciseService struct {
	exerciseRepo      repository.ExerciseRepository
	roundExerciseRepo repository.RoundExerciseRepository
	fileStorage       storage.FileStorage
	videoMaxBytes     int64
	log               *zap.Logger
	now               func() time.Time
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(
	exerciseRepo repository.ExerciseRepository,
	roundExerciseRepo repository.RoundExerciseRepository,
	fileStorage storage.FileStorage,
	videoMaxBytes int64,
	log *zap.Logger,
) ExerciseService {
	return &exerciseService{
		exerciseRepo:      exerciseRepo,
		roundExerciseRepo: roundExerciseRepo,
		fileStorage:       fileStorage,
		videoMaxBytes:     videoMaxBytes,
		log:               log,
		now:               utcNow,
	}
}

func (s *exerciseService) ListExercises(ctx context.Context, caller domain.Caller) ([]domain.Exercise, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	exercises, err := s.exerciseRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	return exercises, nil
}

func (s *exerciseService) GetExercise(ctx context.Context, caller domain.Caller, id primitive.ObjectID) (*domain.Exercise, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	return s.getExercise(ctx, id)
}

func (s *exerciseService) getExercise(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, fmt.Errorf("load exercise: %w", err)
	}
	return exercise, nil
}

// validate trims the input and checks category and field set.
func (in *ExerciseInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.CustomCategory = strings.TrimSpace(in.CustomCategory)
	if in.Name == "" {
		return invalidInput("exercise name is required")
	}
	if !in.Category.IsValid() {
		return invalidInput("unknown category")
	}
	if in.Category == domain.CategoryCustom && in.CustomCategory == "" {
		return invalidInput("a custom category needs a name")
	}
	if in.Category != domain.CategoryCustom {
		in.CustomCategory = ""
	}
	if len(in.RequiredFields) == 0 {
		return invalidInput("select at least one field")
	}

	seen := make(map[domain.ExerciseField]bool, len(in.RequiredFields))
	fields := make([]domain.ExerciseField, 0, len(in.RequiredFields))
	for _, f := range in.RequiredFields {
		if !f.IsValid() {
			return invalidInput("unknown field " + string(f))
		}
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	in.RequiredFields = fields
	return nil
}

// CreateExercise adds an entry to the catalogue.
func (s *exerciseService) CreateExercise(ctx context.Context, caller domain.Caller, in ExerciseInput) (*domain.Exercise, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	exercise := &domain.Exercise{
		Name:           in.Name,
		Category:       in.Category,
		CustomCategory: in.CustomCategory,
		RequiredFields: in.RequiredFields,
		CreatedBy:      caller.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.exerciseRepo.Create(ctx, exercise); err != nil {
		return nil, fmt.Errorf("create exercise: %w", err)
	}
	s.log.Info("exercise created", zap.String("exercise_id", exercise.ID.Hex()), zap.String("name", exercise.Name))
	return exercise, nil
}

func (s *exerciseService) UpdateExercise(ctx context.Context, caller domain.Caller, id primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	exercise.Name = in.Name
	exercise.Category = in.Category
	exercise.CustomCategory = in.CustomCategory
	exercise.RequiredFields = in.RequiredFields

	if err := s.exerciseRepo.Update(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, fmt.Errorf("update exercise: %w", err)
	}
	return exercise, nil
}

// DeleteExercise removes an exercise no round has ever planned, and its video.
func (s *exerciseService) DeleteExercise(ctx context.Context, caller domain.Caller, id primitive.ObjectID) error {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return err
	}
	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return err
	}

	uses, err := s.roundExerciseRepo.CountByExercise(ctx, id)
	if err != nil {
		return fmt.Errorf("count exercise uses: %w", err)
	}
	if uses > 0 {
		return ErrExerciseInUse
	}

	if err := s.exerciseRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExerciseNotFound
		}
		return fmt.Errorf("delete exercise: %w", err)
	}
	if exercise.HasVideo() {
		s.removeObject(ctx, exercise.VideoKey)
	}
	s.log.Info("exercise deleted", zap.String("exercise_id", id.Hex()))
	return nil
}

// === Video ===

// RequestVideoUpload issues a presigned PUT URL for a new video object.
// The object is attached to the exercise only on confirmation.
func (s *exerciseService) RequestVideoUpload(ctx context.Context, caller domain.Caller, id primitive.ObjectID, contentType string, size int64) (*VideoUploadTicket, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !storage.IsVideoContentType(contentType) {
		return nil, ErrInvalidVideo
	}
	if size <= 0 || size > s.videoMaxBytes {
		return nil, ErrVideoTooLarge
	}
	if _, err := s.getExercise(ctx, id); err != nil {
		return nil, err
	}

	objectKey := storage.NewExerciseVideoKey(id.Hex(), contentType)
	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &VideoUploadTicket{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
		ExpiresAt: s.now().Add(storage.DefaultPresignedURLExpiry),
	}, nil
}

// ConfirmVideoUpload attaches an uploaded object to the exercise and removes the previous one.
func (s *exerciseService) ConfirmVideoUpload(ctx context.Context, caller domain.Caller, id primitive.ObjectID, objectKey string) (*domain.Exercise, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !storage.KeyBelongsToExercise(objectKey, id.Hex()) {
		return nil, invalidInput("object key was not issued for this exercise")
	}
	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return nil, err
	}

	size, err := s.fileStorage.ObjectSize(ctx, objectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrVideoNotUploaded
		}
		return nil, fmt.Errorf("check uploaded video: %w", err)
	}
	if size > s.videoMaxBytes {
		s.removeObject(ctx, objectKey)
		return nil, ErrVideoTooLarge
	}

	previous := exercise.VideoKey
	if err := s.exerciseRepo.SetVideoKey(ctx, id, objectKey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, fmt.Errorf("store video key: %w", err)
	}
	if previous != "" && previous != objectKey {
		s.removeObject(ctx, previous)
	}

	exercise.VideoKey = objectKey
	s.log.Info("exercise video attached", zap.String("exercise_id", id.Hex()), zap.Int64("size", size))
	return exercise, nil
}

func (s *exerciseService) GetVideoURL(ctx context.Context, caller domain.Caller, id primitive.ObjectID) (string, error) {
	if !caller.IsAuthenticated() {
		return "", ErrUnauthorized
	}
	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return "", err
	}
	if !exercise.HasVideo() {
		return "", ErrExerciseHasNoVideo
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, exercise.VideoKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

func (s *exerciseService) DeleteVideo(ctx context.Context, caller domain.Caller, id primitive.ObjectID) error {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return err
	}
	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return err
	}
	if !exercise.HasVideo() {
		return ErrExerciseHasNoVideo
	}
	if err := s.exerciseRepo.SetVideoKey(ctx, id, ""); err != nil {
		return fmt.Errorf("clear video key: %w", err)
	}
	s.removeObject(ctx, exercise.VideoKey)
	return nil
}

// removeObject deletes an object the catalogue no longer references. A leftover
// object costs storage only, so failures are logged.
func (s *exerciseService) removeObject(ctx context.Context, key string) {
	if err := s.fileStorage.DeleteObject(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("failed to delete video object", zap.String("key", key), zap.Error(err))
	}
}
