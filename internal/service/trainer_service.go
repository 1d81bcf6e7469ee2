package service

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrainerService gives trainers a view of the athletes assigned to them.
type TrainerService interface {
	GetManagedAthletes(ctx context.Context, caller domain.Caller) ([]domain.User, error)
	// GetAthleteSessions lists an assigned athlete's sessions, newest first.
	GetAthleteSessions(ctx context.Context, caller domain.Caller, athleteID primitive.ObjectID) ([]domain.TrainingSession, error)
}

// trainerService implements the TrainerService interface.
type trainerService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewTrainerService creates a new instance of trainerService.
func NewTrainerService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) TrainerService {
	return &trainerService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// GetManagedAthletes retrieves all athletes whose assigned trainer is the caller.
func (s *trainerService) GetManagedAthletes(ctx context.Context, caller domain.Caller) ([]domain.User, error) {
	if err := requireRole(caller, domain.RoleTrainer); err != nil {
		return nil, err
	}
	athletes, err := s.userRepo.ListAthletesByTrainer(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	for i := range athletes {
		athletes[i].PasswordHash = ""
	}
	return athletes, nil
}

func (s *trainerService) GetAthleteSessions(ctx context.Context, caller domain.Caller, athleteID primitive.ObjectID) ([]domain.TrainingSession, error) {
	if err := requireRole(caller, domain.RoleTrainer); err != nil {
		return nil, err
	}
	athlete, err := s.userRepo.GetByID(ctx, athleteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load athlete: %w", err)
	}
	// someone else's athlete looks like no athlete at all
	if !athlete.HasTrainer(caller.UserID) {
		return nil, ErrUserNotFound
	}

	sessions, err := s.sessionRepo.ListByAthlete(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
