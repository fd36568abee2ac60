package middleware

import (
	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/damacus/dataset-explorer/internal/utils"
	"github.com/labstack/echo/v4"
)

// FormState opens the sealed form state cookie and stores it in the context.
// A cookie that cannot be opened is cleared and an empty state is used.
func FormState(stateService *services.StateService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			state := &services.FormState{}

			cookie, err := c.Cookie(utils.CookieName)
			if err == nil {
				opened, err := stateService.Open(cookie.Value)
				if err != nil {
					// Sealed with a previous key, or tampered with
					cookie.Value = ""
					cookie.MaxAge = -1
					cookie.Path = "/"
					c.SetCookie(cookie)
				} else {
					state = opened
				}
			}

			c.Set(utils.ContextKeyFormState, state)
			return next(c)
		}
	}
}
