package handlers

import (
	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/damacus/dataset-explorer/internal/utils"
	"github.com/labstack/echo/v4"
)

// GetToken retrieves the bearer token extracted by the middleware.
// A missing token is not an error here; the explorer reports it.
func GetToken(c echo.Context) services.Token {
	token, ok := c.Get(utils.ContextKeyToken).(services.Token)
	if !ok {
		return services.ExtractBearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	}
	return token
}

// GetFormState retrieves the session form state, or an empty one
func GetFormState(c echo.Context) *services.FormState {
	state, ok := c.Get(utils.ContextKeyFormState).(*services.FormState)
	if !ok || state == nil {
		return &services.FormState{}
	}
	return state
}

// CSRFToken returns the token the CSRF middleware stored for this request
func CSRFToken(c echo.Context) string {
	token, _ := c.Get(utils.ContextKeyCSRF).(string)
	return token
}

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}
