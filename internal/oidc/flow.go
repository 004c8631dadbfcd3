// Package oidc implements the OAuth2/OIDC federation flow against a
// single identity provider: endpoint discovery, authorization-code
// exchange, userinfo retrieval, token refresh, and logout URL building.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	autherr "go.airavate.in/auth/errors"
)

// ClientConfig carries the relying-party settings for one provider.
type ClientConfig struct {
	Issuer             string
	ClientID           string
	ClientSecret       string
	RedirectURI        string
	Scopes             []string
	PostLogoutRedirect string
}

// FlowEngine drives the OAuth2 authorization-code flow. Discovery runs
// lazily on first use behind a mutex: concurrent first callers serialize
// on one network call, the result is cached for process lifetime, and a
// failed discovery is retried by the next caller.
type FlowEngine struct {
	cfg        ClientConfig
	httpClient *http.Client

	mu      sync.Mutex
	oidcCfg *Configuration
}

// Option configures a FlowEngine.
type Option func(*FlowEngine)

// WithHTTPClient overrides the HTTP client used for every outbound call.
func WithHTTPClient(client *http.Client) Option {
	return func(e *FlowEngine) { e.httpClient = client }
}

// WithConfiguration seeds an already-discovered provider configuration,
// skipping the network fetch entirely.
func WithConfiguration(cfg *Configuration) Option {
	return func(e *FlowEngine) { e.oidcCfg = cfg }
}

// NewFlowEngine creates a FlowEngine for the given provider settings.
func NewFlowEngine(cfg ClientConfig, opts ...Option) *FlowEngine {
	cfg.Issuer = strings.TrimSuffix(cfg.Issuer, "/")
	engine := &FlowEngine{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: discoveryTimeout},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Configuration returns the cached provider configuration, triggering
// discovery when it has not happened yet.
func (e *FlowEngine) Configuration(ctx context.Context) (*Configuration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.oidcCfg != nil {
		return e.oidcCfg, nil
	}

	cfg, err := Discover(ctx, e.httpClient, e.cfg.Issuer)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("issuer", cfg.Issuer).
		Str("authorization_endpoint", cfg.AuthorizationEndpoint).
		Str("token_endpoint", cfg.TokenEndpoint).
		Str("userinfo_endpoint", cfg.UserinfoEndpoint).
		Msg("OIDC provider discovered")

	e.oidcCfg = cfg
	return cfg, nil
}

// Initialized reports whether discovery has completed.
func (e *FlowEngine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.oidcCfg != nil
}

func (e *FlowEngine) oauth2Config(cfg *Configuration) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.cfg.ClientID,
		ClientSecret: e.cfg.ClientSecret,
		RedirectURL:  e.cfg.RedirectURI,
		Scopes:       e.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizationEndpoint,
			TokenURL:  cfg.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// outboundContext bounds the call and routes the oauth2 transport through
// the engine's HTTP client.
func (e *FlowEngine) outboundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	return context.WithTimeout(ctx, discoveryTimeout)
}

// GenerateState returns a cryptographically random, URL-safe CSRF state
// value (32 random bytes, base64url encoded).
func (e *FlowEngine) GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// AuthorizationURL builds the URL the user agent should be redirected to.
// When state is empty a fresh random value is generated; the state
// actually used is returned alongside the URL so the caller can persist
// it for callback correlation.
func (e *FlowEngine) AuthorizationURL(ctx context.Context, state string) (string, string, error) {
	cfg, err := e.Configuration(ctx)
	if err != nil {
		return "", "", err
	}

	if state == "" {
		state, err = e.GenerateState()
		if err != nil {
			return "", "", err
		}
	}

	return e.oauth2Config(cfg).AuthCodeURL(state), state, nil
}

// Exchange redeems an authorization code for a token set via a
// form-encoded POST to the token endpoint.
func (e *FlowEngine) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	cfg, err := e.Configuration(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.outboundContext(ctx)
	defer cancel()

	token, err := e.oauth2Config(cfg).Exchange(ctx, code)
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrTokenExchangeFailed, "%v", err)
	}

	return tokenSetFromOAuth2(token), nil
}

// Refresh redeems a refresh token for a fresh token set.
func (e *FlowEngine) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	cfg, err := e.Configuration(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.outboundContext(ctx)
	defer cancel()

	source := e.oauth2Config(cfg).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrTokenRefreshFailed, "%v", err)
	}

	return tokenSetFromOAuth2(token), nil
}

// UserInfo fetches the federated identity claims for an access token.
func (e *FlowEngine) UserInfo(ctx context.Context, accessToken string) (*FederatedIdentityClaims, error) {
	cfg, err := e.Configuration(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserinfoEndpoint, nil)
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrUserInfoFailed, "building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrUserInfoFailed, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, autherr.Wrapf(autherr.ErrUserInfoFailed, "status %d: %s", resp.StatusCode, string(body))
	}

	var claims FederatedIdentityClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, autherr.Wrapf(autherr.ErrUserInfoFailed, "decoding response: %v", err)
	}

	return &claims, nil
}

// DecodeIDToken extracts the claims from an ID token WITHOUT verifying
// its signature. It validates only structure, expiry, and issuer. This is
// acceptable solely because the token arrives directly from the trusted
// token endpoint over TLS; claims decoded from any other source must go
// through full JWKS verification instead.
func (e *FlowEngine) DecodeIDToken(idToken string) (*FederatedIdentityClaims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, autherr.Wrapf(autherr.ErrInvalidTokenFormat, "expected 3 segments, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrInvalidTokenFormat, "payload segment: %v", err)
	}

	var claims FederatedIdentityClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, autherr.Wrapf(autherr.ErrInvalidTokenFormat, "payload claims: %v", err)
	}

	if claims.ExpiresAt > 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, autherr.ErrTokenExpired
	}
	if claims.Issuer != e.cfg.Issuer {
		return nil, autherr.Wrapf(autherr.ErrInvalidIssuer, "got %q, want %q", claims.Issuer, e.cfg.Issuer)
	}

	return &claims, nil
}

// LogoutURL builds the provider's end-session URL with the configured
// post-logout redirect and an optional id_token_hint.
func (e *FlowEngine) LogoutURL(ctx context.Context, idTokenHint string) (string, error) {
	cfg, err := e.Configuration(ctx)
	if err != nil {
		return "", err
	}
	if cfg.EndSessionEndpoint == "" {
		return "", fmt.Errorf("%w: provider has no end_session_endpoint", autherr.ErrDiscoveryFailed)
	}

	params := url.Values{}
	params.Set("post_logout_redirect_uri", e.cfg.PostLogoutRedirect)
	if idTokenHint != "" {
		params.Set("id_token_hint", idTokenHint)
	}

	return cfg.EndSessionEndpoint + "?" + params.Encode(), nil
}

func tokenSetFromOAuth2(token *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		set.Scope = scope
	}
	return set
}
