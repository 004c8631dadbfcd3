package services

import (
	"context"

	"go.airavate.in/auth/internal/oidc"
)

// PasswordHasher abstracts the one-way password hashing scheme.
type PasswordHasher interface {
	// Hash generates a salted, adaptive digest for the given password.
	Hash(password string) (string, error)
	// Verify compares a digest with its possible plaintext equivalent.
	// Returns nil on match.
	Verify(hashedPassword, password string) error
}

// OAuthFlow is the subset of the OIDC flow engine the orchestrator uses.
type OAuthFlow interface {
	AuthorizationURL(ctx context.Context, state string) (url string, usedState string, err error)
	Exchange(ctx context.Context, code string) (*oidc.TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (*oidc.FederatedIdentityClaims, error)
	Refresh(ctx context.Context, refreshToken string) (*oidc.TokenSet, error)
	LogoutURL(ctx context.Context, idTokenHint string) (string, error)
}
