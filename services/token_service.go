package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go.airavate.in/auth/domain"
	autherr "go.airavate.in/auth/errors"
	"go.airavate.in/auth/internal/metrics"
)

// SessionClaims is the claim set carried by a session token. Holders
// treat the token as opaque; only the service verifies it.
type SessionClaims struct {
	UserID    string          `json:"userId"`
	Email     string          `json:"email"`
	FirstName string          `json:"firstName,omitempty"`
	LastName  string          `json:"lastName,omitempty"`
	Role      domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// SessionTokenService mints and verifies signed session tokens. Tokens
// are HMAC-signed with a process-wide symmetric secret and expire after
// the configured TTL.
type SessionTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSessionTokenService creates a SessionTokenService. A non-positive
// ttl defaults to 7 days.
func NewSessionTokenService(secret string, issuer string, ttl time.Duration) *SessionTokenService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionTokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// TTL returns the configured session lifetime.
func (s *SessionTokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a session token carrying the user's identity claims.
func (s *SessionTokenService) Issue(user *domain.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	metrics.SessionTokensIssuedTotal.Inc()
	return signed, nil
}

// Verify parses and validates a session token. Any failure, whether a
// bad signature, malformed structure, or expiry, surfaces as
// ErrInvalidToken.
func (s *SessionTokenService) Verify(tokenValue string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenValue, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, autherr.Wrapf(autherr.ErrInvalidToken, "unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrInvalidToken, "%v", err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, autherr.ErrInvalidToken
	}

	return claims, nil
}
