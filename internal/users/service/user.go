package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	userserrors "fleetbook/internal/users/errors"
	"fleetbook/internal/users/repository"
	"fleetbook/internal/users/validator"
	"fleetbook/pkg/config"
	apperrors "fleetbook/pkg/errors"
	"fleetbook/pkg/model"
	"fleetbook/pkg/sanitizer"
)

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type UserService interface {
	Register(ctx context.Context, reg *model.Registration) (*model.User, error)
	Login(ctx context.Context, creds *model.Credentials) (*Session, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewUserService(repo repository.UserRepository, userValidator *validator.UserValidator, cfg *config.Config) UserService {
	return &userService{
		repo:      repo,
		validator: userValidator,
		cfg:       cfg,
	}
}

func (s *userService) Register(ctx context.Context, reg *model.Registration) (*model.User, error) {
	reg.Name = sanitizer.NormalizeName(reg.Name)
	reg.Alias = sanitizer.NormalizeName(reg.Alias)
	reg.Email = sanitizer.NormalizeEmail(reg.Email)

	if err := s.validator.ValidateRegistration(reg); err != nil {
		s.cfg.Log.Warn("Registration validation failed", "email", reg.Email, "error", err)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Name:         reg.Name,
		Alias:        reg.Alias,
		Email:        reg.Email,
		PasswordHash: string(hash),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrEmailTaken) {
			return nil, apperrors.Conflict("A user with this email already exists")
		}
		s.cfg.Log.Error("Failed to create user", "email", reg.Email, "error", err)
		return nil, apperrors.Internal("Failed to create user", err)
	}

	s.cfg.Log.Info("User registered successfully", "id", user.ID, "email", user.Email)
	return user, nil
}

func (s *userService) Login(ctx context.Context, creds *model.Credentials) (*Session, error) {
	creds.Email = sanitizer.NormalizeEmail(creds.Email)

	if err := s.validator.ValidateCredentials(creds); err != nil {
		return nil, apperrors.Validation("Login validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	user, err := s.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			// Same response as a wrong password so login does not leak
			// which emails are registered.
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.cfg.Log.Warn("Login failed", "email", creds.Email)
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	expiresAt := time.Now().Add(s.cfg.JWTTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, apperrors.Internal("Failed to sign token", err)
	}

	s.cfg.Log.Info("User logged in", "id", user.ID)
	return &Session{
		Token:     signed,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		if errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}

	return user, nil
}
