package fiber

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

// SessionKey is the Locals key Protected stores the session under.
const SessionKey = "bantay.session"

// Protected is a Fiber middleware that requires a session and stores it in
// Locals for downstream handlers. Anonymous browsers are redirected to sign
// in; JSON clients get a 401.
func Protected(h core.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		req, err := newRequest(c, core.ActionSession)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		data, cookies, err := h.GetServerSession(c.Context(), req)
		for _, ck := range cookies {
			c.Cookie(fiberCookie(ck))
		}
		if err != nil {
			h.Logger().Warn("SESSION_ERROR", zap.Error(err))
		}
		if err != nil || data == nil {
			res := h.SessionRequired(req, c.BaseURL()+c.OriginalURL())
			if strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) {
				return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
					"error": string(core.CodeSessionRequired),
					"url":   res.Redirect,
				})
			}
			return writeResponse(c, res)
		}

		c.Locals(SessionKey, data)
		return c.Next()
	}
}

// Session returns the session Protected stored, or nil.
func Session(c fiber.Ctx) *core.SessionData {
	data, _ := c.Locals(SessionKey).(*core.SessionData)
	return data
}
