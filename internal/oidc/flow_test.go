package oidc_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherr "go.airavate.in/auth/errors"
	"go.airavate.in/auth/internal/oidc"
)

const testIssuer = "https://idp.example.com/application/o/test"

func testConfiguration(base string) *oidc.Configuration {
	return &oidc.Configuration{
		Issuer:                base,
		AuthorizationEndpoint: base + "/authorize",
		TokenEndpoint:         base + "/token",
		UserinfoEndpoint:      base + "/userinfo",
		JWKSURI:               base + "/jwks",
		EndSessionEndpoint:    base + "/end-session",
	}
}

func newEngine(cfg oidc.ClientConfig, conf *oidc.Configuration, client *http.Client) *oidc.FlowEngine {
	opts := []oidc.Option{oidc.WithConfiguration(conf)}
	if client != nil {
		opts = append(opts, oidc.WithHTTPClient(client))
	}
	return oidc.NewFlowEngine(cfg, opts...)
}

func makeIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

func TestAuthorizationURL(t *testing.T) {
	engine := newEngine(oidc.ClientConfig{
		Issuer:      testIssuer,
		ClientID:    "client-id",
		RedirectURI: "https://app.example.com/auth/oauth/callback",
		Scopes:      []string{"openid", "profile", "email"},
	}, testConfiguration(testIssuer), nil)

	rawURL, state, err := engine.AuthorizationURL(context.Background(), "my-state")
	require.NoError(t, err)
	assert.Equal(t, "my-state", state)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, testIssuer+"/authorize", parsed.Scheme+"://"+parsed.Host+parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "https://app.example.com/auth/oauth/callback", query.Get("redirect_uri"))
	assert.Equal(t, "openid profile email", query.Get("scope"))
	assert.Equal(t, "my-state", query.Get("state"))
}

func TestAuthorizationURL_GeneratesState(t *testing.T) {
	engine := newEngine(oidc.ClientConfig{Issuer: testIssuer, ClientID: "c"},
		testConfiguration(testIssuer), nil)

	_, first, err := engine.AuthorizationURL(context.Background(), "")
	require.NoError(t, err)
	_, second, err := engine.AuthorizationURL(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)

	// 32 random bytes, URL-safe base64.
	raw, err := base64.URLEncoding.DecodeString(first)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestExchange(t *testing.T) {
	var gotGrant, gotCode, gotClientID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.Form.Get("grant_type")
		gotCode = r.Form.Get("code")
		gotClientID = r.Form.Get("client_id")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-123",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "rt-456",
			"scope":         "openid profile email",
			"id_token":      "header.payload.sig",
		})
	}))
	defer srv.Close()

	engine := newEngine(oidc.ClientConfig{
		Issuer:       testIssuer,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/cb",
	}, testConfiguration(srv.URL), srv.Client())

	set, err := engine.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotGrant)
	assert.Equal(t, "auth-code", gotCode)
	assert.Equal(t, "client-id", gotClientID)
	assert.Equal(t, "at-123", set.AccessToken)
	assert.Equal(t, "rt-456", set.RefreshToken)
	assert.Equal(t, "header.payload.sig", set.IDToken)
	assert.Equal(t, "openid profile email", set.Scope)
	assert.True(t, set.Valid())
}

func TestExchange_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))
	defer srv.Close()

	engine := newEngine(oidc.ClientConfig{Issuer: testIssuer, ClientID: "c"},
		testConfiguration(srv.URL), srv.Client())

	_, err := engine.Exchange(context.Background(), "bad-code")
	require.ErrorIs(t, err, autherr.ErrTokenExchangeFailed)
}

func TestRefresh(t *testing.T) {
	var gotGrant, gotRefresh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.Form.Get("grant_type")
		gotRefresh = r.Form.Get("refresh_token")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-fresh",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	engine := newEngine(oidc.ClientConfig{Issuer: testIssuer, ClientID: "c"},
		testConfiguration(srv.URL), srv.Client())

	set, err := engine.Refresh(context.Background(), "rt-456")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", gotGrant)
	assert.Equal(t, "rt-456", gotRefresh)
	assert.Equal(t, "at-fresh", set.AccessToken)
}

func TestRefresh_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	engine := newEngine(oidc.ClientConfig{Issuer: testIssuer, ClientID: "c"},
		testConfiguration(srv.URL), srv.Client())

	_, err := engine.Refresh(context.Background(), "stale")
	require.ErrorIs(t, err, autherr.ErrTokenRefreshFailed)
}

func TestUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"sub":                "ext-789",
			"email":              "jane@example.com",
			"email_verified":     true,
			"name":               "Jane Doe",
			"given_name":         "Jane",
			"family_name":        "Doe",
			"preferred_username": "jane",
			"picture":            "https://cdn.example.com/jane.png",
		})
	}))
	defer srv.Close()

	engine := newEngine(oidc.ClientConfig{Issuer: testIssuer, ClientID: "c"},
		testConfiguration(srv.URL), srv.Client())

	claims, err := engine.UserInfo(context.Background(), "at-123")
	require.NoError(t, err)
	assert.Equal(t, "ext-789", claims.Subject)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "Jane", claims.GivenName)
	assert.Equal(t, "Doe", claims.FamilyName)
	assert.Equal(t, "https://cdn.example.com/jane.png", claims.Picture)
}

func TestUserInfo_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	engine := newEngine(oidc.ClientConfig{Issuer: testIssuer, ClientID: "c"},
		testConfiguration(srv.URL), srv.Client())

	_, err := engine.UserInfo(context.Background(), "stale")
	require.ErrorIs(t, err, autherr.ErrUserInfoFailed)
}

func TestDecodeIDToken(t *testing.T) {
	engine := newEngine(oidc.ClientConfig{Issuer: testIssuer, ClientID: "c"},
		testConfiguration(testIssuer), nil)

	t.Run("valid", func(t *testing.T) {
		token := makeIDToken(t, map[string]any{
			"sub":   "ext-789",
			"email": "jane@example.com",
			"iss":   testIssuer,
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		claims, err := engine.DecodeIDToken(token)
		require.NoError(t, err)
		assert.Equal(t, "ext-789", claims.Subject)
		assert.Equal(t, "jane@example.com", claims.Email)
	})

	t.Run("two segments", func(t *testing.T) {
		_, err := engine.DecodeIDToken("header.payload")
		require.ErrorIs(t, err, autherr.ErrInvalidTokenFormat)
	})

	t.Run("bad payload encoding", func(t *testing.T) {
		_, err := engine.DecodeIDToken("header.!!!.sig")
		require.ErrorIs(t, err, autherr.ErrInvalidTokenFormat)
	})

	t.Run("expired", func(t *testing.T) {
		token := makeIDToken(t, map[string]any{
			"iss": testIssuer,
			"exp": time.Now().Add(-time.Minute).Unix(),
		})
		_, err := engine.DecodeIDToken(token)
		require.ErrorIs(t, err, autherr.ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := makeIDToken(t, map[string]any{
			"iss": "https://evil.example.com",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := engine.DecodeIDToken(token)
		require.ErrorIs(t, err, autherr.ErrInvalidIssuer)
	})
}

func TestLogoutURL(t *testing.T) {
	engine := newEngine(oidc.ClientConfig{
		Issuer:             testIssuer,
		ClientID:           "c",
		PostLogoutRedirect: "https://app.example.com/logout",
	}, testConfiguration(testIssuer), nil)

	rawURL, err := engine.LogoutURL(context.Background(), "the-id-token")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rawURL, testIssuer+"/end-session?"))

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/logout", parsed.Query().Get("post_logout_redirect_uri"))
	assert.Equal(t, "the-id-token", parsed.Query().Get("id_token_hint"))
}

func TestLogoutURL_NoHint(t *testing.T) {
	engine := newEngine(oidc.ClientConfig{
		Issuer:             testIssuer,
		PostLogoutRedirect: "https://app.example.com/logout",
	}, testConfiguration(testIssuer), nil)

	rawURL, err := engine.LogoutURL(context.Background(), "")
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.False(t, parsed.Query().Has("id_token_hint"))
}
