package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/referral-service/internal/domain"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

// SetupRequiredMessage is shown to partners who still have to rotate their password and accept the terms.
const SetupRequiredMessage = "Change your password and accept the confidentiality terms to continue."

// UserLookup loads the user behind a verified identity.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// RequireRole checks the identity holds the given role.
func RequireRole(identity Identity, role domain.Role) error {
	if identity.Role != role {
		return apperrors.NewForbidden()
	}
	return nil
}

// RequireAdmin ensures the caller is an administrator.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := MustIdentity(c)
		if err != nil {
			return err
		}
		if err := RequireRole(identity, domain.RoleAdmin); err != nil {
			return err
		}
		return c.Next()
	}
}

// CheckSetupCompleted returns SetupRequired unless the user reached the terminal setup state.
// Administrators bypass the check without a store lookup.
func CheckSetupCompleted(ctx context.Context, users UserLookup, identity Identity) error {
	if identity.IsAdmin() {
		return nil
	}
	user, err := users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewUnauthorized()
		}
		return apperrors.MapError(err)
	}
	if user.SetupState() != domain.SetupCompleted {
		return apperrors.NewSetupRequired(SetupRequiredMessage)
	}
	return nil
}

// RequireSetupCompleted blocks non-admin callers until the first-access ritual is done.
func RequireSetupCompleted(users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := MustIdentity(c)
		if err != nil {
			return err
		}
		if err := CheckSetupCompleted(c.UserContext(), users, identity); err != nil {
			return err
		}
		return c.Next()
	}
}
