package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/referral-service/internal/api/dto"
	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/service"
)

// ReferralsHandler exposes referral endpoints.
type ReferralsHandler struct {
	referrals *service.ReferralService
}

// NewReferralsHandler constructs handler.
func NewReferralsHandler(referralService *service.ReferralService) *ReferralsHandler {
	return &ReferralsHandler{referrals: referralService}
}

// List handles GET /api/indicacoes.
func (h *ReferralsHandler) List(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	referrals, err := h.referrals.List(c.UserContext(), identity, c.Query("userEmail"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewReferralList(referrals))
}

// Create handles POST /api/indicacoes.
func (h *ReferralsHandler) Create(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ReferralFields
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	created, err := h.referrals.Create(c.UserContext(), identity, req.Referral())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewReferralResponse(created))
}

// Update handles PUT /api/indicacoes/:id.
func (h *ReferralsHandler) Update(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	update, err := dto.DecodeReferralUpdate(c.Body())
	if err != nil {
		return invalidPayload()
	}
	updated, err := h.referrals.Update(c.UserContext(), identity, c.Params("id"), service.ReferralChange{
		Fields:     update.Keys,
		Patch:      update.Fields.Patch(),
		OwnerEmail: update.Fields.OwnerEmail,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewReferralResponse(updated))
}

// Delete handles DELETE /api/indicacoes/:id.
func (h *ReferralsHandler) Delete(c *fiber.Ctx) error {
	if err := h.referrals.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// MigrateStatusDates handles POST /api/indicacoes/migrate-status-date.
func (h *ReferralsHandler) MigrateStatusDates(c *fiber.Ctx) error {
	modified, err := h.referrals.BackfillStatusDates(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.MigrationResponse{OK: true, Modified: modified})
}
