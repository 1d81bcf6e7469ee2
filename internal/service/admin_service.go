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
	"golang.org/x/crypto/bcrypt"
)

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Roles    domain.Roles
}

// AdminService manages accounts. Every method requires the ADMIN role.
type AdminService interface {
	CreateUser(ctx context.Context, caller domain.Caller, in CreateUserInput) (*domain.User, error)
	ListUsers(ctx context.Context, caller domain.Caller) ([]domain.User, error)
	SetUserActive(ctx context.Context, caller domain.Caller, userID primitive.ObjectID, active bool) error
	SetUserRoles(ctx context.Context, caller domain.Caller, userID primitive.ObjectID, roles domain.Roles) error
	// AssignTrainer links an athlete to a trainer; a nil trainerID unassigns.
	AssignTrainer(ctx context.Context, caller domain.Caller, athleteID primitive.ObjectID, trainerID *primitive.ObjectID) error
}

type adminService struct {
	userRepo repository.UserRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewAdminService(userRepo repository.UserRepository, log *zap.Logger) AdminService {
	return &adminService{userRepo: userRepo, log: log, now: utcNow}
}

// CreateUser registers an active account.
func (s *adminService) CreateUser(ctx context.Context, caller domain.Caller, in CreateUserInput) (*domain.User, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return createUser(ctx, s.userRepo, in, s.now())
}

// createUser is shared with the seed command, which runs before any admin exists.
func createUser(ctx context.Context, userRepo repository.UserRepository, in CreateUserInput, now time.Time) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, invalidInput("name and a valid email are required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	roles := in.Roles.Normalize()
	if len(roles) == 0 || !in.Roles.Valid() {
		return nil, ErrInvalidRoles
	}

	_, err := userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        roles,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := userRepo.Create(ctx, user); err != nil {
		// unique index caught a concurrent registration
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

// BootstrapAdmin creates an admin account without a calling identity.
func BootstrapAdmin(ctx context.Context, userRepo repository.UserRepository, name, email, password string) (*domain.User, error) {
	return createUser(ctx, userRepo, CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Roles:    domain.Roles{domain.RoleAdmin},
	}, utcNow())
}

func (s *adminService) ListUsers(ctx context.Context, caller domain.Caller) ([]domain.User, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *adminService) SetUserActive(ctx context.Context, caller domain.Caller, userID primitive.ObjectID, active bool) error {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return err
	}
	if userID == caller.UserID && !active {
		return invalidInput("you cannot deactivate your own account")
	}
	if err := s.userRepo.SetActive(ctx, userID, active); err != nil {
		return mapUserWriteError(err, "set active")
	}
	s.log.Info("user activation changed", zap.String("user_id", userID.Hex()), zap.Bool("active", active))
	return nil
}

func (s *adminService) SetUserRoles(ctx context.Context, caller domain.Caller, userID primitive.ObjectID, roles domain.Roles) error {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return err
	}
	normalized := roles.Normalize()
	if len(normalized) == 0 || !roles.Valid() {
		return ErrInvalidRoles
	}
	if userID == caller.UserID && !normalized.Has(domain.RoleAdmin) {
		return invalidInput("you cannot remove your own admin role")
	}
	if err := s.userRepo.SetRoles(ctx, userID, normalized); err != nil {
		return mapUserWriteError(err, "set roles")
	}
	s.log.Info("user roles changed", zap.String("user_id", userID.Hex()), zap.Any("roles", normalized))
	return nil
}

// AssignTrainer checks both ends of the relationship before writing it.
func (s *adminService) AssignTrainer(ctx context.Context, caller domain.Caller, athleteID primitive.ObjectID, trainerID *primitive.ObjectID) error {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return err
	}

	athlete, err := s.userRepo.GetByID(ctx, athleteID)
	if err != nil {
		return mapUserWriteError(err, "load athlete")
	}
	if !athlete.IsAthlete() {
		return ErrNotAnAthlete
	}

	if trainerID != nil {
		trainer, err := s.userRepo.GetByID(ctx, *trainerID)
		if err != nil {
			return mapUserWriteError(err, "load trainer")
		}
		if !trainer.IsTrainer() {
			return ErrNotATrainer
		}
	}

	if err := s.userRepo.SetTrainer(ctx, athleteID, trainerID); err != nil {
		return mapUserWriteError(err, "set trainer")
	}
	s.log.Info("trainer assignment changed",
		zap.String("athlete_id", athleteID.Hex()), zap.Stringp("trainer_id", hexOrNil(trainerID)))
	return nil
}

func mapUserWriteError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func hexOrNil(id *primitive.ObjectID) *string {
	if id == nil {
		return nil
	}
	h := id.Hex()
	return &h
}
