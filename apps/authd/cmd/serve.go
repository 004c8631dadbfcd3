package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	authapi "go.airavate.in/auth/api/echo"
	"go.airavate.in/auth/cache"
	cacheredis "go.airavate.in/auth/cache/redis"
	"go.airavate.in/auth/config"
	"go.airavate.in/auth/internal/auth"
	"go.airavate.in/auth/internal/metrics"
	"go.airavate.in/auth/internal/oidc"
	applog "go.airavate.in/auth/log"
	"go.airavate.in/auth/mongodb"
	"go.airavate.in/auth/services"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	applog.Setup(cfg.LogLevel, cfg.LogPretty)
	metrics.Init(prometheus.DefaultRegisterer)

	client, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to disconnect MongoDB client")
		}
	}()

	users, err := mongodb.NewUserRepository(ctx, client.Database(cfg.MongoDBName))
	if err != nil {
		return err
	}

	var states cache.StateStore
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		states = cacheredis.NewStateStore(rdb, "authd", cfg.OAuthStateTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis OAuth state store")
	} else {
		memStates := cache.NewMemoryStateStore(cfg.OAuthStateTTL)
		defer memStates.Stop()
		states = memStates
		log.Info().Msg("Using in-memory OAuth state store")
	}

	flow := oidc.NewFlowEngine(oidc.ClientConfig{
		Issuer:             cfg.OIDCIssuer,
		ClientID:           cfg.OIDCClientID,
		ClientSecret:       cfg.OIDCClientSecret,
		RedirectURI:        cfg.OIDCRedirectURI,
		Scopes:             cfg.ScopeList(),
		PostLogoutRedirect: cfg.PostLogoutRedirect,
	})

	tokens := services.NewSessionTokenService(cfg.JWTSecret, "authd", cfg.SessionTTL)
	hasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	authSvc := services.NewAuthService(
		users, hasher, flow, tokens, states,
		cfg.OIDCProviderName, cfg.RequireOAuthState,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	authapi.NewAuthAPI(authSvc, tokens).RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("provider", cfg.OIDCProviderName).Msg("authd listening")
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
