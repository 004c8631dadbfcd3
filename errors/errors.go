// Package errors defines the typed failures surfaced by the
// authentication core. Callers match them with errors.Is / errors.As.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail is returned when registering an email that is
	// already taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers unknown email, federated-only account,
	// and wrong password alike, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned by repositories on a missing record.
	ErrUserNotFound = errors.New("user not found")

	// ErrDiscoveryFailed indicates the OIDC well-known document could not
	// be fetched or parsed.
	ErrDiscoveryFailed = errors.New("oidc discovery failed")

	// ErrTokenExchangeFailed indicates the authorization-code grant was
	// rejected by the token endpoint.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrUserInfoFailed indicates the userinfo endpoint call failed.
	ErrUserInfoFailed = errors.New("userinfo request failed")

	// ErrTokenRefreshFailed indicates the refresh_token grant failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrInvalidTokenFormat indicates an ID token that is not three
	// dot-separated base64url segments.
	ErrInvalidTokenFormat = errors.New("invalid id token format")

	// ErrTokenExpired indicates an ID token whose exp claim is in the past.
	ErrTokenExpired = errors.New("id token expired")

	// ErrInvalidIssuer indicates an ID token issued by someone other than
	// the configured provider.
	ErrInvalidIssuer = errors.New("invalid id token issuer")

	// ErrInvalidToken covers every session-token verification failure:
	// bad signature, malformed structure, or expiry.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrInvalidAuthState is returned when a callback carries a state
	// parameter that was never issued or has already been consumed.
	ErrInvalidAuthState = errors.New("invalid auth state parameter")
)

// FlowError wraps any federation-step failure on the OAuth callback path.
// The boundary message is deliberately generic; the cause is carried for
// logging and errors.Is matching.
type FlowError struct {
	Cause error
}

func (e *FlowError) Error() string {
	return "OAuth authentication failed"
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewFlowError wraps err in a FlowError. A nil err returns nil.
func NewFlowError(err error) error {
	if err == nil {
		return nil
	}
	return &FlowError{Cause: err}
}

// IsFlowError reports whether err is (or wraps) a FlowError.
func IsFlowError(err error) bool {
	var fe *FlowError
	return errors.As(err, &fe)
}

// Wrapf annotates a sentinel with detail while keeping errors.Is matching
// on the sentinel.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}
