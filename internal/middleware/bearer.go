package middleware

import (
	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/damacus/dataset-explorer/internal/utils"
	"github.com/labstack/echo/v4"
)

// BearerToken lifts the token from the Authorization header into the context.
// Requests without a token are passed through; the explorer reports the
// missing credential itself.
func BearerToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			c.Set(utils.ContextKeyToken, services.ExtractBearerToken(header))
			return next(c)
		}
	}
}
