package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// OwnerHeader carries the caller identity resolved by the authentication layer
const OwnerHeader = "X-Owner-ID"

const ownerKey = "owner_id"

// Owner rejects requests without an owner identity and stores it for handlers
func Owner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := strings.TrimSpace(c.Get(OwnerHeader))
		if owner == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+OwnerHeader+" header")
		}
		c.Locals(ownerKey, owner)
		return c.Next()
	}
}

// OwnerID returns the owner stored by Owner
func OwnerID(c *fiber.Ctx) string {
	owner, _ := c.Locals(ownerKey).(string)
	return owner
}
