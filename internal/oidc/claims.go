package oidc

import "time"

// FederatedIdentityClaims holds the identity assertions returned by the
// provider's userinfo endpoint or carried in an ID token payload.
type FederatedIdentityClaims struct {
	Subject           string   `json:"sub"`
	Email             string   `json:"email"`
	EmailVerified     bool     `json:"email_verified"`
	Name              string   `json:"name"`
	GivenName         string   `json:"given_name,omitempty"`
	FamilyName        string   `json:"family_name,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Picture           string   `json:"picture,omitempty"`
	Groups            []string `json:"groups,omitempty"`
	Audience          string   `json:"aud,omitempty"`
	Issuer            string   `json:"iss,omitempty"`
	IssuedAt          int64    `json:"iat,omitempty"`
	ExpiresAt         int64    `json:"exp,omitempty"`
}

// TokenSet is the transient result of an authorization-code exchange or a
// refresh. It is never persisted; the access token is used once to fetch
// user info and the refresh token is handed back to the caller.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
	Scope        string
	IDToken      string
}

// Valid reports whether the access token is present and not yet expired.
func (t *TokenSet) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || time.Now().Before(t.Expiry)
}
