package services

import "strings"

// BearerPrefix is the token-type prefix stripped from the Authorization header.
const BearerPrefix = "Bearer "

// Token is the credential lifted from an inbound Authorization header.
type Token struct {
	Value           string
	Header          string
	HasBearerPrefix bool
}

// Present reports whether a usable token was extracted.
func (t Token) Present() bool {
	return t.Value != ""
}

// Preview returns a masked form of the token, safe to display.
func (t Token) Preview() string {
	return MaskSecret(t.Value)
}

// ExtractBearerToken strips a leading "Bearer " from the header value.
// A header without the prefix is used verbatim.
func ExtractBearerToken(header string) Token {
	token := Token{Header: header}
	if header == "" {
		return token
	}
	if strings.HasPrefix(header, BearerPrefix) {
		token.HasBearerPrefix = true
		token.Value = header[len(BearerPrefix):]
		return token
	}
	token.Value = header
	return token
}

// MaskSecret keeps the first and last ten characters of long values and the
// first five of short ones.
func MaskSecret(s string) string {
	if len(s) > 20 {
		return s[:10] + "..." + s[len(s)-10:]
	}
	if len(s) > 5 {
		return s[:5] + "..."
	}
	return s + "..."
}
