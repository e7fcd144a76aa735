package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	userserrors "fleetbook/internal/users/errors"
	"fleetbook/internal/users/repository"
	"fleetbook/internal/users/validator"
	"fleetbook/pkg/config"
	apperrors "fleetbook/pkg/errors"
	"fleetbook/pkg/logger"
	"fleetbook/pkg/model"
)

const testSecret = "unit-test-secret"

type mockUserRepo struct {
	createFn      func(ctx context.Context, user *model.User) error
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.createFn(ctx, user)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findByEmailFn(ctx, email)
}

func (m *mockUserRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newTestService(repo *mockUserRepo) UserService {
	cfg := &config.Config{
		Log:        logger.New(logger.Config{Level: "error", Service: "users-test"}),
		JWTSecret:  testSecret,
		JWTTTL:     time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
	return NewUserService(repo, validator.NewUserValidator(cfg.Log), cfg)
}

func TestRegister(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			user.ID = "65f000000000000000000001"
			created = user
			return nil
		},
	}

	svc := newTestService(repo)
	user, err := svc.Register(context.Background(), &model.Registration{
		Name:     "  Alice   Smith ",
		Email:    " Alice@Example.COM ",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.Name != "Alice Smith" {
		t.Errorf("name not normalized: %q", created.Name)
	}
	if created.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", created.Email)
	}
	if created.PasswordHash == "" || created.PasswordHash == "correct horse battery" {
		t.Error("password must be stored as a hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse battery")); err != nil {
		t.Errorf("stored hash does not match the password: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return userserrors.ErrEmailTaken
		},
	}

	svc := newTestService(repo)
	_, err := svc.Register(context.Background(), &model.Registration{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})

	if apperrors.AsAppError(err).Code != apperrors.CodeConflict {
		t.Fatalf("expected a conflict error, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	tests := []struct {
		name string
		reg  model.Registration
	}{
		{"missing email", model.Registration{Name: "Alice", Password: "correct horse battery"}},
		{"bad email", model.Registration{Name: "Alice", Email: "not-an-email", Password: "correct horse battery"}},
		{"short password", model.Registration{Name: "Alice", Email: "alice@example.com", Password: "short"}},
		{"missing name", model.Registration{Email: "alice@example.com", Password: "correct horse battery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &tt.reg)
			if apperrors.AsAppError(err).Code != apperrors.CodeValidation {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}

func registeredUser(t *testing.T) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return &model.User{
		ID:           "65f000000000000000000001",
		Name:         "Alice Smith",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
	}
}

func TestLoginIssuesToken(t *testing.T) {
	user := registeredUser(t)
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email != user.Email {
				return nil, userserrors.ErrNotFound
			}
			return user, nil
		},
	}

	svc := newTestService(repo)
	session, err := svc.Login(context.Background(), &model.Credentials{
		Email:    " Alice@Example.COM ",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := jwt.Parse(session.Token, func(token *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		t.Fatalf("issued token does not verify: %v", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject != user.ID {
		t.Errorf("token subject = %q (%v), want %q", subject, err, user.ID)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session expiry must be in the future")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	user := registeredUser(t)
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return user, nil
		},
	}

	svc := newTestService(repo)
	_, err := svc.Login(context.Background(), &model.Credentials{
		Email:    "alice@example.com",
		Password: "wrong password",
	})

	if apperrors.AsAppError(err).Code != apperrors.CodeUnauthorized {
		t.Fatalf("expected an unauthorized error, got %v", err)
	}
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, userserrors.ErrNotFound
		},
	}

	svc := newTestService(repo)
	_, err := svc.Login(context.Background(), &model.Credentials{
		Email:    "nobody@example.com",
		Password: "whatever password",
	})

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeUnauthorized {
		t.Fatalf("expected an unauthorized error, got %v", err)
	}
	if appErr.Message != "Invalid email or password" {
		t.Errorf("unknown emails must not be distinguishable: %q", appErr.Message)
	}
}

func TestGetByID(t *testing.T) {
	user := registeredUser(t)
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id != user.ID {
				return nil, userserrors.ErrNotFound
			}
			return user, nil
		},
	}

	svc := newTestService(repo)
	got, err := svc.GetByID(context.Background(), user.ID)
	if err != nil || got != user {
		t.Fatalf("GetByID = %v, %v; want the stored user", got, err)
	}

	_, err = svc.GetByID(context.Background(), "65f000000000000000000099")
	if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}
