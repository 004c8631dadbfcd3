package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.airavate.in/auth/domain"
	"go.airavate.in/auth/middleware"
	"go.airavate.in/auth/services"
)

func newSessionContext(t *testing.T, authorization string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequireSession(t *testing.T) {
	tokens := services.NewSessionTokenService("middleware-secret", "authd", time.Hour)
	token, err := tokens.Issue(&domain.User{
		ID:    "user-1",
		Email: "mw@example.com",
		Role:  domain.RoleUser,
	})
	require.NoError(t, err)

	handler := middleware.RequireSession(tokens)(func(c echo.Context) error {
		claims, ok := middleware.GetSessionClaims(c)
		require.True(t, ok)
		return c.String(http.StatusOK, claims.UserID)
	})

	t.Run("valid token", func(t *testing.T) {
		c, rec := newSessionContext(t, "Bearer "+token)
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("lowercase bearer scheme", func(t *testing.T) {
		c, rec := newSessionContext(t, "bearer "+token)
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		c, _ := newSessionContext(t, "")
		err := handler(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		c, _ := newSessionContext(t, "Basic dXNlcjpwYXNz")
		err := handler(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		c, _ := newSessionContext(t, "Bearer not.a.token")
		err := handler(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := services.NewSessionTokenService("other-secret", "authd", time.Hour)
		foreign, err := other.Issue(&domain.User{ID: "user-2", Email: "x@example.com", Role: domain.RoleUser})
		require.NoError(t, err)

		c, _ := newSessionContext(t, "Bearer "+foreign)
		handlerErr := handler(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, handlerErr, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})
}

func TestGetSessionClaims_Absent(t *testing.T) {
	c, _ := newSessionContext(t, "")
	claims, ok := middleware.GetSessionClaims(c)
	assert.False(t, ok)
	assert.Nil(t, claims)
}
