package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	autherr "go.airavate.in/auth/errors"
	"go.airavate.in/auth/internal/metrics"
)

// discoveryTimeout bounds every outbound call to the provider.
const discoveryTimeout = 10 * time.Second

// wellKnownPath is appended to the issuer base URL to locate the
// provider's discovery document.
const wellKnownPath = "/.well-known/openid_configuration"

// Configuration is the provider metadata resolved from the OIDC discovery
// document. It is fetched once lazily and cached for process lifetime.
type Configuration struct {
	Issuer                 string   `json:"issuer"`
	AuthorizationEndpoint  string   `json:"authorization_endpoint"`
	TokenEndpoint          string   `json:"token_endpoint"`
	UserinfoEndpoint       string   `json:"userinfo_endpoint"`
	JWKSURI                string   `json:"jwks_uri"`
	EndSessionEndpoint     string   `json:"end_session_endpoint"`
	ScopesSupported        []string `json:"scopes_supported"`
	ResponseTypesSupported []string `json:"response_types_supported"`
	GrantTypesSupported    []string `json:"grant_types_supported"`
}

// Validate checks the fields every flow operation depends on.
func (c *Configuration) Validate() error {
	switch {
	case c.Issuer == "":
		return autherr.Wrapf(autherr.ErrDiscoveryFailed, "document missing issuer")
	case c.AuthorizationEndpoint == "":
		return autherr.Wrapf(autherr.ErrDiscoveryFailed, "document missing authorization_endpoint")
	case c.TokenEndpoint == "":
		return autherr.Wrapf(autherr.ErrDiscoveryFailed, "document missing token_endpoint")
	case c.UserinfoEndpoint == "":
		return autherr.Wrapf(autherr.ErrDiscoveryFailed, "document missing userinfo_endpoint")
	}
	return nil
}

// Discover fetches and parses the provider's well-known configuration
// document. The issuer's trailing slash is trimmed before the well-known
// path is appended. Network failures, non-2xx responses, and documents
// missing required endpoints all surface as ErrDiscoveryFailed.
func Discover(ctx context.Context, client *http.Client, issuer string) (*Configuration, error) {
	if client == nil {
		client = &http.Client{Timeout: discoveryTimeout}
	}

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	configURL := strings.TrimSuffix(issuer, "/") + wellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrDiscoveryFailed, "building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "authd/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrDiscoveryFailed, "fetching %s: %v", configURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, autherr.Wrapf(autherr.ErrDiscoveryFailed, "unexpected status %d from %s", resp.StatusCode, configURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, autherr.Wrapf(autherr.ErrDiscoveryFailed, "reading response: %v", err)
	}

	var cfg Configuration
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing document: %v", autherr.ErrDiscoveryFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metrics.DiscoveryTotal.Inc()
	return &cfg, nil
}
