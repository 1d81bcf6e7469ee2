package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// WeightService keeps the body weight log.
type WeightService interface {
	AddEntry(ctx context.Context, caller domain.Caller, weight float64, note string, date time.Time) (*domain.WeightEntry, error)
	// ListEntries returns userID's entries to the user, their trainer or an admin.
	ListEntries(ctx context.Context, caller domain.Caller, userID primitive.ObjectID) ([]domain.WeightEntry, error)
	DeleteEntry(ctx context.Context, caller domain.Caller, entryID primitive.ObjectID) error
}

type weightService struct {
	weightRepo repository.WeightRepository
	userRepo   repository.UserRepository
	log        *zap.Logger
	now        func() time.Time
}

func NewWeightService(weightRepo repository.WeightRepository, userRepo repository.UserRepository, log *zap.Logger) WeightService {
	return &weightService{weightRepo: weightRepo, userRepo: userRepo, log: log, now: utcNow}
}

func (s *weightService) AddEntry(ctx context.Context, caller domain.Caller, weight float64, note string, date time.Time) (*domain.WeightEntry, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	if weight < domain.MinBodyWeight || weight > domain.MaxBodyWeight {
		return nil, ErrWeightOutOfRange
	}

	now := s.now()
	if date.IsZero() {
		date = now
	}
	entry := &domain.WeightEntry{
		UserID:    caller.UserID,
		Weight:    weight,
		Note:      strings.TrimSpace(note),
		Date:      date.UTC(),
		CreatedAt: now,
	}
	if _, err := s.weightRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create weight entry: %w", err)
	}
	return entry, nil
}

func (s *weightService) ListEntries(ctx context.Context, caller domain.Caller, userID primitive.ObjectID) ([]domain.WeightEntry, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	if userID != caller.UserID && !caller.Has(domain.RoleAdmin) {
		if !caller.Has(domain.RoleTrainer) {
			return nil, ErrUserNotFound
		}
		athlete, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("load athlete: %w", err)
		}
		if !athlete.HasTrainer(caller.UserID) {
			return nil, ErrUserNotFound
		}
	}

	entries, err := s.weightRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list weight entries: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes one of the caller's own entries.
func (s *weightService) DeleteEntry(ctx context.Context, caller domain.Caller, entryID primitive.ObjectID) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}
	if err := s.weightRepo.Delete(ctx, entryID, caller.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWeightEntryNotFound
		}
		return fmt.Errorf("delete weight entry: %w", err)
	}
	return nil
}
