package middleware

import (
	"net/http"

	"github.com/damacus/dataset-explorer/internal/utils"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// CSRFFormField carries the token on plain form posts; HTMX sends it in X-CSRF-Token.
const CSRFFormField = "_csrf"

func CSRF() echo.MiddlewareFunc {
	return echoMiddleware.CSRFWithConfig(echoMiddleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:" + CSRFFormField,
		ContextKey:     utils.ContextKeyCSRF,
		CookieName:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteStrictMode,
	})
}
