package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// SessionKeyLoggedIn marks an authenticated operator session.
const SessionKeyLoggedIn = "logged_in"

// RequireLogin gates mutating routes behind the shared-password
// session. Unauthenticated callers get a 401 carrying the URL they
// asked for, so a client can send them back after login.
func RequireLogin(sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Session store unavailable",
			})
		}

		if loggedIn, _ := sess.Get(SessionKeyLoggedIn).(bool); !loggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Login required",
				"next":    c.OriginalURL(),
			})
		}

		return c.Next()
	}
}
