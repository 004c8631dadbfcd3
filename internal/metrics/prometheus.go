package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal         prometheus.Counter
	LoginFailureTotal         prometheus.Counter
	UserRegisteredTotal       prometheus.Counter
	SessionTokensIssuedTotal  prometheus.Counter
	OAuthCallbackTotal        prometheus.Counter
	OAuthCallbackFailureTotal prometheus.Counter
	DiscoveryTotal            prometheus.Counter
)

// Init initializes and registers the custom Prometheus metrics.
// It should be called once at application startup.
func Init(reg prometheus.Registerer) {
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logins_success_total",
		Help: "Total number of successful password logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logins_failure_total",
		Help: "Total number of failed password logins.",
	})
	UserRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_users_registered_total",
		Help: "Total number of users registered.",
	})
	SessionTokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_session_tokens_issued_total",
		Help: "Total number of session tokens issued.",
	})
	OAuthCallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_oauth_callbacks_total",
		Help: "Total number of OAuth callbacks processed.",
	})
	OAuthCallbackFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_oauth_callbacks_failure_total",
		Help: "Total number of OAuth callbacks that failed.",
	})
	DiscoveryTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_oidc_discovery_total",
		Help: "Total number of OIDC discovery document fetches.",
	})

	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		LoginSuccessTotal, LoginFailureTotal, UserRegisteredTotal,
		SessionTokensIssuedTotal, OAuthCallbackTotal,
		OAuthCallbackFailureTotal, DiscoveryTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}

func init() {
	// Counters must be usable even when Init was not called (tests).
	Init(nil)
}
