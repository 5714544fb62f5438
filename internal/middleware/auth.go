package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/yg10008/GuildHire-YG/internal/auth"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

const identityKey = "identity"

// Authenticate verifies the bearer token and stores the resolved account
// reference in the request locals.
func Authenticate(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		token := ""
		if header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				token = parts[1]
			}
		}
		if token == "" {
			token = c.Cookies("token")
		}

		identity, err := verifier.Verify(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
		}
		c.Locals(identityKey, identity.Ref)
		return c.Next()
	}
}

// Identity returns the authenticated account reference set by Authenticate.
func Identity(c *fiber.Ctx) (models.AccountRef, bool) {
	ref, ok := c.Locals(identityKey).(models.AccountRef)
	return ref, ok
}
