package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the authentication service.
// Tags use mapstructure for Viper unmarshalling; every key is also bound
// to the environment variable of the same name.
type Config struct {
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// RedisAddr, when set, switches the OAuth state store from the
	// in-process cache to Redis so multiple instances can share it.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`
	BcryptCost     int           `mapstructure:"BCRYPT_COST"`

	OIDCIssuer         string `mapstructure:"OIDC_ISSUER"`
	OIDCClientID       string `mapstructure:"OIDC_CLIENT_ID"`
	OIDCClientSecret   string `mapstructure:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURI    string `mapstructure:"OIDC_REDIRECT_URI"`
	OIDCScopes         string `mapstructure:"OIDC_SCOPES"`
	OIDCProviderName   string `mapstructure:"OIDC_PROVIDER_NAME"`
	PostLogoutRedirect string `mapstructure:"POST_LOGOUT_REDIRECT"`

	// RequireOAuthState rejects OAuth callbacks whose state parameter was
	// not issued by this service. Disable only when a trusted frontend
	// performs its own CSRF correlation.
	RequireOAuthState bool          `mapstructure:"REQUIRE_OAUTH_STATE"`
	OAuthStateTTL     time.Duration `mapstructure:"OAUTH_STATE_TTL"`
}

// Load reads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/authd/")
	v.AddConfigPath("$HOME/.authd")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Keys without a meaningful default still need to be registered so
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("OIDC_CLIENT_ID", "")
	v.SetDefault("OIDC_CLIENT_SECRET", "")
	v.SetDefault("OIDC_ISSUER", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/auth_dev")
	v.SetDefault("MONGO_DB_NAME", "auth_dev")
	v.SetDefault("SESSION_TTL", "168h") // 7 days
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OIDC_SCOPES", "openid profile email offline_access")
	v.SetDefault("OIDC_PROVIDER_NAME", "google")
	v.SetDefault("OIDC_REDIRECT_URI", "http://localhost:8080/auth/oauth/callback")
	v.SetDefault("POST_LOGOUT_REDIRECT", "http://localhost:8080/logout")
	v.SetDefault("REQUIRE_OAUTH_STATE", true)
	v.SetDefault("OAUTH_STATE_TTL", "10m")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything can come from env.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the settings the service cannot start without.
// A missing signing secret or issuer must fail here, not at first request.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.OIDCIssuer == "" {
		return errors.New("config: OIDC_ISSUER is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.BcryptCost < 10 {
		return fmt.Errorf("config: BCRYPT_COST %d is below the minimum of 10", c.BcryptCost)
	}
	return nil
}

// ScopeList splits the configured space-separated scope string.
func (c *Config) ScopeList() []string {
	return strings.Fields(c.OIDCScopes)
}
