package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"go.airavate.in/auth/services"
)

// sessionClaimsKey is the echo context key the validated session claims
// are stored under.
const sessionClaimsKey = "session_claims"

// RequireSession validates the Bearer token on incoming requests and
// stores the session claims in the request context. Requests without a
// valid token are rejected with 401.
func RequireSession(tokens *services.SessionTokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format: expected Bearer token")
			}

			claims, err := tokens.Verify(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(sessionClaimsKey, claims)
			return next(c)
		}
	}
}

// GetSessionClaims retrieves the validated session claims stored by
// RequireSession. Handlers behind the middleware can rely on ok being
// true.
func GetSessionClaims(c echo.Context) (*services.SessionClaims, bool) {
	claims, ok := c.Get(sessionClaimsKey).(*services.SessionClaims)
	return claims, ok
}
