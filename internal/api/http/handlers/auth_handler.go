package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/referral-service/internal/api/dto"
	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/ratelimit"
	"github.com/spec-kit/referral-service/internal/service"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

// AuthHandler exposes login, first-access setup and the current-user lookup.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	origin := ratelimit.ClientOrigin(c.Get(fiber.HeaderXForwardedFor), c.Context().RemoteAddr().String())

	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		if err := h.auth.CountRejectedAttempt(c.UserContext(), origin, dto.LoginEmailHint(c.Body())); err != nil {
			return err
		}
		return invalidPayload()
	}

	result, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Origin:   origin,
	})
	if err != nil {
		return err
	}

	return c.JSON(dto.LoginResponse{
		Token: result.Token,
		User:  dto.NewSessionUser(result.User),
	})
}

// Setup handles POST /api/auth/setup and its legacy alias.
func (h *AuthHandler) Setup(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var req dto.SetupRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	user, err := h.auth.CompleteSetup(c.UserContext(), identity, service.SetupInput{
		NewPassword:   req.NewPassword,
		TermsAccepted: bool(req.TermsAccepted),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.SetupResponse{OK: true, User: dto.NewSessionUser(user)})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Me(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSessionUser(user))
}

func invalidPayload() error {
	return apperrors.NewValidationError("invalid payload", nil)
}
