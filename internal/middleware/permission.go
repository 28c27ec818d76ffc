package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/models"
	"mediashelf/internal/utils"
)

// RequirePermission lets the request through when the user holds FULL or any of perms
func RequirePermission(perms ...models.Permission) fiber.Handler {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	message := "Requires one of: " + strings.Join(names, ", ")

	return func(c *fiber.Ctx) error {
		user, ok := GetAuthUser(c)
		if !ok {
			return utils.SendUnauthorizedError(c, "Authentication required")
		}
		if !user.Permissions.Satisfies(perms...) {
			return utils.SendInsufficientPermission(c, message)
		}
		return c.Next()
	}
}

// HasPermission checks perms inside a handler, for routes whose requirement depends on the request
func HasPermission(c *fiber.Ctx, perms ...models.Permission) bool {
	user, ok := GetAuthUser(c)
	return ok && user.Permissions.Satisfies(perms...)
}
