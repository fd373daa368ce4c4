package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamup-app/teamup-backend/internal/users"
	"github.com/teamup-app/teamup-backend/pkg/config"
	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/enums"
	pkgerrors "github.com/teamup-app/teamup-backend/pkg/errors"
	"github.com/teamup-app/teamup-backend/pkg/events"
	"github.com/teamup-app/teamup-backend/pkg/logger"
	"github.com/teamup-app/teamup-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.UserCreatedEvent) error
}

type tokenIssuer interface {
	Issue(userID uuid.UUID, username string, role enums.Role) (string, time.Time, error)
}

// ServiceParams bundles the dependencies required to build the identity service.
type ServiceParams struct {
	DB             txRunner
	Publisher      eventPublisher
	Tokens         tokenIssuer
	Logger         *logger.Logger
	PasswordConfig config.PasswordConfig
}

type service struct {
	db          txRunner
	publisher   eventPublisher
	tokens      tokenIssuer
	logg        *logger.Logger
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService constructs the identity service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event publisher required")
	}
	if params.Tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token issuer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		db:          params.DB,
		publisher:   params.Publisher,
		tokens:      params.Tokens,
		logg:        params.Logger,
		passwordCfg: params.PasswordConfig,
		now:         time.Now,
	}, nil
}

// Register creates the account and schedules the provisioning event. The
// event goes out only after the user row is committed, so consumers never see
// an account that does not exist.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !req.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)

		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		if _, err := repo.FindByUsername(ctx, username); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
		}

		user, err := repo.Create(ctx, users.CreateUserDTO{
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			Role:         req.Role,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := events.UserCreatedEvent{
		UserID:     created.ID,
		Username:   created.Username,
		Email:      created.Email,
		Role:       created.Role,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// The account exists; provisioning will catch up via the retry
		// store or a manual replay. Registration itself succeeded.
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id": created.ID.String(),
			"role":    created.Role,
		})
		s.logg.Error(logCtx, "failed to schedule provisioning event", err)
	}

	return &RegisterResponse{
		UserID:    created.ID,
		Username:  created.Username,
		Email:     created.Email,
		Role:      created.Role,
		CreatedAt: created.CreatedAt,
	}, nil
}

// Login verifies credentials and issues an access token.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	var user *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		found, err := repo.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user")
		}
		if !found.IsActive {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}

		ok, err := security.VerifyPassword(req.Password, found.PasswordHash)
		if err != nil || !ok {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}

		if err := repo.UpdateLastLogin(ctx, found.ID, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record login")
		}
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue token")
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
	}, nil
}
