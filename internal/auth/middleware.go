package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

const identityKey = "auth_identity"

// AuthMiddleware validates bearer tokens. The token is the sole evidence of identity;
// no session lookup happens here.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apperrors.NewUnauthorized()
	}

	identity, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized()
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (Identity, bool) {
	identity, ok := c.Locals(identityKey).(Identity)
	return identity, ok
}

// MustIdentity returns the caller or an Unauthorized error when the middleware did not run.
func MustIdentity(c *fiber.Ctx) (Identity, error) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		return Identity{}, apperrors.NewUnauthorized()
	}
	return identity, nil
}
