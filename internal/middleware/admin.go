package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin returns a middleware that rejects requests whose token does
// not carry the is_admin claim. It assumes JWTAuth already ran and stored
// the claim in the context.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v := c.Get("is_admin")
			isAdmin, ok := v.(bool)
			if !ok || !isAdmin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin required"})
			}
			return next(c)
		}
	}
}
