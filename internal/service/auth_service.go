package service

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/events"
	"github.com/spec-kit/referral-service/internal/ratelimit"
	"github.com/spec-kit/referral-service/internal/repository"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

// RateLimitedMessage is returned on the 429 login response.
const RateLimitedMessage = "Too many attempts. Try again later."

// AuthService coordinates login, first-access setup and the current-user lookup.
type AuthService struct {
	users         repository.UserRepository
	tokens        *auth.TokenManager
	limiter       ratelimit.Limiter
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
	bcryptCost    int
	minPassword   int
	upgradeLegacy bool
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Tokens     *auth.TokenManager
	Limiter    ratelimit.Limiter
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	minPassword := cfg.MinPasswordLength
	if minPassword <= 0 {
		minPassword = 6
	}
	return &AuthService{
		users:         deps.Users,
		tokens:        deps.Tokens,
		limiter:       deps.Limiter,
		dispatcher:    deps.Dispatcher,
		logger:        defaultLogger(deps.Logger),
		now:           defaultClock(deps.Now),
		bcryptCost:    cfg.BcryptCost,
		minPassword:   minPassword,
		upgradeLegacy: cfg.UpgradeLegacyPasswords,
	}
}

// LoginInput carries a login attempt and the origin it came from.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
	Origin   string `json:"-"`
}

// LoginResult is a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// CountRejectedAttempt records a login whose payload could not be decoded. It returns RateLimited
// once the origin and identity pair is over budget, nil otherwise.
func (s *AuthService) CountRejectedAttempt(ctx context.Context, origin, email string) error {
	if s.limiter.IsRateLimited(ctx, ratelimit.Key(origin, domain.NormalizeEmail(email))) {
		return apperrors.NewRateLimited(RateLimitedMessage)
	}
	return nil
}

// Login counts the attempt, verifies the credential and issues a session token.
// Unknown identities and wrong secrets fail identically.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if s.limiter.IsRateLimited(ctx, ratelimit.Key(in.Origin, email)) {
		return nil, apperrors.NewRateLimited(RateLimitedMessage)
	}

	in.Email = email
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	); err != nil {
		return nil, validationFailed(err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.MapError(err)
	}
	if !auth.VerifyCredential(in.Password, user.Credential) {
		return nil, apperrors.NewInvalidCredentials()
	}

	token, expiresAt, err := s.tokens.GenerateToken(auth.Identity{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      user.Role,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	if err := s.users.TouchLastAccess(ctx, user.ID, now); err != nil {
		s.logger.Warn("record last access failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastAccessAt = &now
	}

	if user.Credential.IsLegacy() && s.upgradeLegacy {
		s.upgradeCredential(ctx, user, in.Password)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) upgradeCredential(ctx context.Context, user *domain.User, secret string) {
	digest, err := auth.HashPassword(secret, s.bcryptCost)
	if err != nil {
		s.logger.Warn("hash legacy credential failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	credential := domain.HashedCredential(digest)
	if err := s.users.UpdateCredential(ctx, user.ID, credential); err != nil {
		s.logger.Warn("upgrade legacy credential failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.Credential = credential
	s.logger.Info("legacy credential upgraded", zap.String("user_id", user.ID))
}

// SetupInput is the first-access ritual payload.
type SetupInput struct {
	NewPassword   string `json:"novaSenha"`
	TermsAccepted bool   `json:"aceitouTermo"`
}

// CompleteSetup rotates the password and records terms acceptance in one step.
// Nothing is hashed or stored unless both checks pass.
func (s *AuthService) CompleteSetup(ctx context.Context, identity auth.Identity, in SetupInput) (*domain.User, error) {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.NewPassword,
			validation.Required.Error("password is required"),
			validation.Length(s.minPassword, 0).Error("password is too short"),
		),
		validation.Field(&in.TermsAccepted,
			validation.Required.Error("the confidentiality terms must be accepted"),
		),
	); err != nil {
		return nil, validationFailed(err)
	}

	user, err := s.users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.MapError(err)
	}
	if user.SetupState() == domain.SetupCompleted {
		return nil, setupAlreadyCompleted()
	}

	digest, err := auth.HashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	acceptedAt := s.now()
	if err := s.users.CompleteSetup(ctx, user.ID, digest, acceptedAt); err != nil {
		if errors.Is(err, repository.ErrSetupAlreadyCompleted) {
			return nil, setupAlreadyCompleted()
		}
		return nil, apperrors.MapError(err)
	}

	user.Credential = domain.HashedCredential(digest)
	user.FirstAccessPending = false
	user.TermsAccepted = true
	user.TermsAcceptedAt = &acceptedAt

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventUserSetupCompleted,
		Actor:     events.Actor{UserID: &user.ID, Email: user.Email, Role: user.Role},
		Timestamp: acceptedAt,
		Payload:   events.UserSetupCompletedPayload{UserID: user.ID, AcceptedAt: acceptedAt},
	})
	return user, nil
}

// Me returns the user behind the session.
func (s *AuthService) Me(ctx context.Context, identity auth.Identity) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized()
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func setupAlreadyCompleted() error {
	return apperrors.NewConflict("setup already completed", map[string]any{"reason": "SetupAlreadyCompleted"})
}
