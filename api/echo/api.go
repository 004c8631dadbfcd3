package echo

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	autherr "go.airavate.in/auth/errors"
	"go.airavate.in/auth/internal/oidc"
	"go.airavate.in/auth/middleware"
	"go.airavate.in/auth/services"
)

const minPasswordLength = 8

// Authenticator is the slice of the auth service the HTTP surface needs.
type Authenticator interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.LoginResult, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	GetAuthorizationURL(ctx context.Context) (string, error)
	OAuthCallback(ctx context.Context, code, state string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*oidc.TokenSet, error)
	LogoutURL(ctx context.Context, idTokenHint string) (string, error)
}

// AuthAPI exposes the authentication endpoints.
type AuthAPI struct {
	auth   Authenticator
	tokens *services.SessionTokenService
}

func NewAuthAPI(auth Authenticator, tokens *services.SessionTokenService) *AuthAPI {
	return &AuthAPI{auth: auth, tokens: tokens}
}

// RegisterRoutes registers the auth routes plus the operational
// endpoints.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/register", a.RegisterHandler)
	e.POST("/auth/login", a.LoginHandler)
	e.GET("/auth/oauth/authorize", a.AuthorizeHandler)
	e.GET("/auth/oauth/callback", a.CallbackHandler)
	e.POST("/auth/oauth/refresh", a.RefreshHandler)
	e.GET("/auth/logout", a.LogoutHandler)
	e.GET("/auth/me", a.MeHandler, middleware.RequireSession(a.tokens))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	IDToken      string `json:"idToken,omitempty"`
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// RegisterHandler creates a local account and returns a session.
func (a *AuthAPI) RegisterHandler(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	if !validEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "A valid email is required"})
	}
	if len(req.Password) < minPasswordLength {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Password must be at least 8 characters"})
	}

	res, err := a.auth.Register(c.Request().Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return a.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// LoginHandler authenticates local credentials and returns a session.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Email and password are required"})
	}

	res, err := a.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return a.mapError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AuthorizeHandler returns the provider authorization URL the client
// should redirect the browser to.
func (a *AuthAPI) AuthorizeHandler(c echo.Context) error {
	url, err := a.auth.GetAuthorizationURL(c.Request().Context())
	if err != nil {
		return a.mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"authUrl": url})
}

// CallbackHandler completes the authorization-code flow.
func (a *AuthAPI) CallbackHandler(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing authorization code"})
	}

	res, err := a.auth.OAuthCallback(c.Request().Context(), code, c.QueryParam("state"))
	if err != nil {
		return a.mapError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// RefreshHandler exchanges a provider refresh token for fresh tokens.
func (a *AuthAPI) RefreshHandler(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Refresh token is required"})
	}

	set, err := a.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return a.mapError(c, err)
	}

	resp := refreshResponse{
		AccessToken:  set.AccessToken,
		TokenType:    set.TokenType,
		RefreshToken: set.RefreshToken,
		IDToken:      set.IDToken,
	}
	if !set.Expiry.IsZero() {
		resp.ExpiresIn = int64(time.Until(set.Expiry).Seconds())
	}
	return c.JSON(http.StatusOK, resp)
}

// LogoutHandler returns the provider end-session URL.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	url, err := a.auth.LogoutURL(c.Request().Context(), c.QueryParam("id_token_hint"))
	if err != nil {
		return a.mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"logoutUrl": url})
}

// MeHandler returns the identity bound to the presented session token.
func (a *AuthAPI) MeHandler(c echo.Context) error {
	claims, ok := middleware.GetSessionClaims(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Not authenticated"})
	}
	return c.JSON(http.StatusOK, claims)
}

// mapError translates service errors to HTTP responses. Flow errors
// keep their generic message on the wire; the cause only goes to the
// log.
func (a *AuthAPI) mapError(c echo.Context, err error) error {
	switch {
	case autherr.IsFlowError(err):
		log.Warn().Err(err).Msg("OAuth flow failed")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.Is(err, autherr.ErrDuplicateEmail):
		return c.JSON(http.StatusConflict, errorResponse{Error: "Email already registered"})
	case errors.Is(err, autherr.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid email or password"})
	case errors.Is(err, autherr.ErrInvalidAuthState):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid or expired authorization state"})
	case errors.Is(err, autherr.ErrDiscoveryFailed),
		errors.Is(err, autherr.ErrTokenExchangeFailed),
		errors.Is(err, autherr.ErrTokenRefreshFailed),
		errors.Is(err, autherr.ErrUserInfoFailed):
		log.Warn().Err(err).Msg("Provider call failed")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "OAuth authentication failed"})
	default:
		log.Error().Err(err).Msg("Unhandled auth error")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}
