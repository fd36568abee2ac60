package utils

import (
	"net/http"
	"strings"
)

// IsSecureRequest reports whether the request arrived over TLS, directly or
// through a TLS-terminating proxy.
func IsSecureRequest(req *http.Request) bool {
	if req.TLS != nil {
		return true
	}

	return strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}
