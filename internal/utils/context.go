// Package utils provides shared constants
package utils

// ContextKeyToken is the key used to store the bearer token in the echo context
const ContextKeyToken = "token"

// ContextKeyFormState is the key used to store the explorer form state in the echo context
const ContextKeyFormState = "formState"

// CookieName is the name of the form state cookie
const CookieName = "ExplorerState"

// ContextKeyCSRF is the key the CSRF middleware stores its token under
const ContextKeyCSRF = "csrf"
