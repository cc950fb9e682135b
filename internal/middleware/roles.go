package middleware

// roles.go: role-based access control.
// The app has three roles: admin, manager, user. Leagues and waitlists are run by
// admins and managers; players manage only their own registrations.

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
)

// RequireRole returns a middleware handler that allows only users whose role matches
// one of roles, and answers 403 Forbidden otherwise:
//
//	api.Post("/leagues", middleware.RequireRole(models.UserRoleAdmin, models.UserRoleManager), ...)
//
// It must run after Auth, which populates the role in c.Locals.
func RequireRole(roles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userRole := CurrentRole(c)
		if userRole == "" {
			// Auth did not run or stored nothing: authenticated or not, deny.
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}

		for _, role := range roles {
			if userRole == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient permissions",
		})
	}
}

// CurrentUserID returns the authenticated user's ID, or uuid.Nil outside Auth.
func CurrentUserID(c *fiber.Ctx) uuid.UUID {
	raw, _ := c.Locals(LocalUserID).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// CurrentRole returns the authenticated user's role, or "" outside Auth.
func CurrentRole(c *fiber.Ctx) models.UserRole {
	role, _ := c.Locals(LocalUserRole).(string)
	return models.UserRole(role)
}

// IsStaff reports whether the caller runs leagues (admin or manager).
func IsStaff(c *fiber.Ctx) bool {
	role := CurrentRole(c)
	return role == models.UserRoleAdmin || role == models.UserRoleManager
}
