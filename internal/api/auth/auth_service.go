package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gearbox-labs/auto-parts-api/config"
	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

// bcryptCost matches the original deployment's hashing cost.
const bcryptCost = 10

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Register validates and creates a new user, returning its public summary.
	Register(ctx context.Context, name, email, password string) (*UserSummary, error)

	// Login authenticates credentials and issues a signed session token.
	Login(ctx context.Context, email, password string) (string, *UserSummary, error)

	// CurrentUser resolves a previously-validated token's user id to the live record.
	CurrentUser(ctx context.Context, userID uuid.UUID) (*UserSummary, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	cfg    config.AuthConfig
}

func NewService(repo Repository, cfg config.AuthConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
	}
}

func (s *ServiceImpl) Register(ctx context.Context, name, email, password string) (*UserSummary, error) {
	if err := validateRegister(name, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, name, strings.ToLower(email), string(hash))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID.String()))
	return user.Summary(), nil
}

// Login deliberately returns the same error for an unknown email and a wrong
// password so callers cannot enumerate accounts.
func (s *ServiceImpl) Login(ctx context.Context, email, password string) (string, *UserSummary, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return "", nil, fmt.Errorf("login: %w", api.ErrUnauthenticated)
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("login: %w", api.ErrUnauthenticated)
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, user.Summary(), nil
}

func (s *ServiceImpl) CurrentUser(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		// Token was valid but the user is gone
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("current user: %w", api.ErrUnauthenticated)
		}
		return nil, err
	}
	return user.Summary(), nil
}

// IssueToken signs a session token carrying the user id. The token is the
// only session state: nothing is persisted, so it stays valid until expiry
// regardless of logout.
func (s *ServiceImpl) IssueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SecretKey))
}

func validateRegister(name, email, password string) error {
	ve := &api.ValidationError{}
	if len(strings.TrimSpace(name)) < 2 {
		ve.Add("name", "must be at least 2 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		ve.Add("email", "must be a valid email address")
	}
	if len(password) < 6 {
		ve.Add("password", "must be at least 6 characters")
	}
	return ve.ErrOrNil()
}
