package service

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/repository"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

// UserService implements the admin-only account management operations.
type UserService struct {
	users       repository.UserRepository
	logger      *zap.Logger
	now         func() time.Time
	bcryptCost  int
	minPassword int
}

// NewUserService builds the service.
func NewUserService(cfg config.AuthConfig, users repository.UserRepository, logger *zap.Logger, now func() time.Time) *UserService {
	minPassword := cfg.MinPasswordLength
	if minPassword <= 0 {
		minPassword = 6
	}
	return &UserService{
		users:       users,
		logger:      defaultLogger(logger),
		now:         defaultClock(now),
		bcryptCost:  cfg.BcryptCost,
		minPassword: minPassword,
	}
}

// CreateUserInput is the admin payload for a new account.
type CreateUserInput struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"senha"`
	Status   string `json:"status"`
}

// UpdateUserInput changes profile fields. Nil fields are left as they are; an empty password is ignored.
type UpdateUserInput struct {
	Name     *string `json:"nome"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Password *string `json:"senha"`
	Status   *string `json:"status"`
}

// List returns every account, newest first.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Create adds an account. Partners start with the setup ritual pending; administrators never enter it.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = string(domain.RolePartner)
	}
	if in.Status == "" {
		in.Status = string(domain.UserStatusActive)
	}
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(s.minPassword, 0)),
		validation.Field(&in.Role, validation.By(validRole)),
		validation.Field(&in.Status, validation.By(validStatus)),
	); err != nil {
		return nil, validationFailed(err)
	}

	role, _ := domain.ParseRole(in.Role)
	status, _ := domain.ParseUserStatus(in.Status)

	digest, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:               strings.TrimSpace(in.Name),
		Email:              in.Email,
		Role:               role,
		Status:             status,
		Credential:         domain.HashedCredential(digest),
		FirstAccessPending: true,
	}
	if role.IsAdmin() {
		acceptedAt := s.now()
		user.FirstAccessPending = false
		user.TermsAccepted = true
		user.TermsAcceptedAt = &acceptedAt
	}

	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsDuplicate(err) {
			return nil, emailTaken()
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Update changes profile fields and optionally the password. Setup flags are not writable here.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	if in.Email != nil {
		normalized := domain.NormalizeEmail(*in.Email)
		in.Email = &normalized
	}
	if in.Password != nil && strings.TrimSpace(*in.Password) == "" {
		in.Password = nil
	}
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&in.Password, validation.Length(s.minPassword, 0)),
		validation.Field(&in.Role, validation.By(validRole)),
		validation.Field(&in.Status, validation.By(validStatus)),
	); err != nil {
		return nil, validationFailed(err)
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Role != nil {
		user.Role, _ = domain.ParseRole(*in.Role)
	}
	if in.Status != nil {
		user.Status, _ = domain.ParseUserStatus(*in.Status)
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if apperrors.IsDuplicate(err) {
			return nil, emailTaken()
		}
		return nil, apperrors.MapError(err)
	}

	if in.Password != nil {
		digest, err := auth.HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		credential := domain.HashedCredential(digest)
		if err := s.users.UpdateCredential(ctx, user.ID, credential); err != nil {
			return nil, apperrors.MapError(err)
		}
		user.Credential = credential
	}
	return user, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// BootstrapAdmin describes the administrator seeded at startup.
type BootstrapAdmin struct {
	Name   string
	Email  string
	Digest string
}

// EnsureAdmin creates the bootstrap administrator unless the email is already registered.
// The account starts with setup completed. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, in BootstrapAdmin) (bool, error) {
	email := domain.NormalizeEmail(in.Email)
	credential := domain.ParseCredential(in.Digest)
	fields := validation.Errors{
		"email":  validation.Validate(email, validation.Required, is.Email),
		"digest": validation.Validate(in.Digest, validation.Required),
	}
	if err := fields.Filter(); err != nil {
		return false, validationFailed(err)
	}
	if credential.IsLegacy() {
		return false, apperrors.NewValidationError("bootstrap password must be a bcrypt digest", nil)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, apperrors.MapError(err)
	}

	acceptedAt := s.now()
	user := &domain.User{
		Name:            strings.TrimSpace(in.Name),
		Email:           email,
		Role:            domain.RoleAdmin,
		Status:          domain.UserStatusActive,
		Credential:      credential,
		TermsAccepted:   true,
		TermsAcceptedAt: &acceptedAt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsDuplicate(err) {
			return false, nil
		}
		return false, apperrors.MapError(err)
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID), zap.String("email", email))
	return true, nil
}

// UpgradeLegacyCredentials hashes every remaining plaintext credential in place.
// It returns how many accounts were rewritten; a failure stops the run.
func (s *UserService) UpgradeLegacyCredentials(ctx context.Context) (int, error) {
	legacy, err := s.users.ListLegacyCredentials(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	upgraded := 0
	for i := range legacy {
		user := &legacy[i]
		digest, err := auth.HashPassword(user.Credential.Value, s.bcryptCost)
		if err != nil {
			return upgraded, apperrors.NewInternalError(err)
		}
		if err := s.users.UpdateCredential(ctx, user.ID, domain.HashedCredential(digest)); err != nil {
			return upgraded, apperrors.MapError(err)
		}
		upgraded++
		s.logger.Info("legacy credential upgraded", zap.String("user_id", user.ID))
	}
	return upgraded, nil
}

func validRole(value any) error {
	raw, ok := stringValue(value)
	if !ok {
		return nil
	}
	if _, ok := domain.ParseRole(raw); !ok {
		return errors.New("must be admin or partner")
	}
	return nil
}

func validStatus(value any) error {
	raw, ok := stringValue(value)
	if !ok {
		return nil
	}
	if _, ok := domain.ParseUserStatus(raw); !ok {
		return errors.New("must be active or inactive")
	}
	return nil
}

// stringValue unwraps the string or *string ozzo hands to a rule. A nil pointer is skipped.
func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	default:
		return "", false
	}
}

func emailTaken() error {
	return apperrors.NewConflict("email already registered", nil)
}
