package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to every password set through the services.
const MinPasswordLength = 8

const tokenIssuer = "coach-sessions"

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService authenticates users and resolves tokens into callers.
type AuthService interface {
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	ParseToken(tokenString string) (domain.Caller, error)
	Authenticate(ctx context.Context, tokenString string) (domain.Caller, error)
	Me(ctx context.Context, caller domain.Caller) (*domain.User, error)
	ChangePassword(ctx context.Context, caller domain.Caller, currentPassword, newPassword string) error
}

// authService implements the AuthService interface.
type authService struct {
	userRepo      repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
	log           *zap.Logger
	now           func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpiration time.Duration, log *zap.Logger) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty")
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &authService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		log:           log,
		now:           utcNow,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks the credentials of an active user and issues a token.
func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, ErrAuthenticationFailed
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}
	if !user.IsActive {
		return "", nil, ErrAccountDisabled
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.Hex()))
	user.PasswordHash = ""
	return token, user, nil
}

// --- JWT Helper ---

// jwtClaims defines the structure of the JWT payload.
type jwtClaims struct {
	UserID string       `json:"uid"`
	Roles  domain.Roles `json:"roles"`
	jwt.RegisteredClaims
}

func (s *authService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	claims := &jwtClaims{
		UserID: user.ID.Hex(),
		Roles:  user.Roles.Normalize(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ParseToken validates signature and expiry and returns the identity it carries.
func (s *authService) ParseToken(tokenString string) (domain.Caller, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return domain.Caller{}, ErrInvalidToken
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil || !claims.Roles.Valid() {
		return domain.Caller{}, ErrInvalidToken
	}
	return domain.Caller{UserID: userID, Roles: claims.Roles}, nil
}

// Authenticate resolves a token against the stored account, so deactivation and
// role changes apply to tokens that are already issued.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (domain.Caller, error) {
	claimed, err := s.ParseToken(tokenString)
	if err != nil {
		return domain.Caller{}, err
	}
	user, err := s.userRepo.GetByID(ctx, claimed.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Caller{}, ErrInvalidToken
		}
		return domain.Caller{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return domain.Caller{}, ErrAccountDisabled
	}
	return domain.Caller{UserID: user.ID, Roles: user.Roles.Normalize()}, nil
}

func (s *authService) Me(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// ChangePassword replaces the caller's own password after checking the current one.
func (s *authService) ChangePassword(ctx context.Context, caller domain.Caller, currentPassword, newPassword string) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.Info("password changed", zap.String("user_id", user.ID.Hex()))
	return nil
}
