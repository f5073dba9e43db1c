package usercontext

import "github.com/gofiber/fiber/v2"

// Locals key under which the authenticated user context is stored.
const ContextKey = "USER_CONTEXT"

// UserContext carries the authenticated identity through a request.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// GetUserContext retrieves the user context, anonymous if none is set.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(ContextKey); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{}
}

// SetUserContext stores the user context on the request.
func SetUserContext(c *fiber.Ctx, ctx UserContext) {
	c.Locals(ContextKey, ctx)
}

// GetUserID returns the current user's id, zero when anonymous.
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetUserEmail returns the current user's email, empty when anonymous.
func GetUserEmail(c *fiber.Ctx) string {
	return GetUserContext(c).Email
}
