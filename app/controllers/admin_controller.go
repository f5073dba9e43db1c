package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/billing"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/usercontext"
)

// AdminController exposes the operator override endpoints. The allow-list
// check lives in the service so it cannot be bypassed by route wiring.
type AdminController struct {
	admin *billing.AdminService
}

func NewAdminController(admin *billing.AdminService) *AdminController {
	return &AdminController{admin: admin}
}

type adminGrantRequest struct {
	Email     string     `json:"email"`
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     string     `json:"notes"`
}

// HandleGrant grants a complimentary tier to the target user.
func (ac *AdminController) HandleGrant(c *fiber.Ctx) error {
	var req adminGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	sub, err := ac.admin.Grant(usercontext.GetUserEmail(c), req.Email, entitlements.Tier(req.Tier), req.ExpiresAt, req.Notes)
	if err != nil {
		return ac.adminError(c, err)
	}
	return c.JSON(sub)
}

type adminTargetRequest struct {
	Email string `json:"email"`
}

// HandleRevoke removes an admin grant from the target user.
func (ac *AdminController) HandleRevoke(c *fiber.Ctx) error {
	var req adminTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	sub, err := ac.admin.Revoke(usercontext.GetUserEmail(c), req.Email)
	if err != nil {
		return ac.adminError(c, err)
	}
	return c.JSON(sub)
}

// HandleQuery returns the target's subscription plus recent history.
func (ac *AdminController) HandleQuery(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "email query parameter is required"})
	}

	sub, history, err := ac.admin.Query(usercontext.GetUserEmail(c), email, c.QueryInt("limit", 20))
	if err != nil {
		return ac.adminError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub, "history": history})
}

func (ac *AdminController) adminError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrNotOperator):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not an authorized operator"})
	case errors.Is(err, billing.ErrInvalidTier):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Grants require a paid tier (pro or studio)"})
	case errors.Is(err, billing.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No user with that email"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Admin operation failed"})
	}
}
