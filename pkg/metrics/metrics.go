package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cropadvisor"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// AuthAttempts counts signup and login outcomes, e.g. {operation="login",result="invalid_credentials"}.
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "auth_attempts_total", Help: "Password signup and login attempts by outcome."},
		[]string{"operation", "result"},
	)
	OAuthCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "oauth_callbacks_total", Help: "OAuth callback outcomes."},
		[]string{"provider", "result"},
	)
	GateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "auth_gate_rejections_total", Help: "Requests rejected by the auth gate."},
		[]string{"reason"},
	)
	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "sessions_created_total", Help: "Server sessions created by the OAuth flow."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(AuthAttempts)
	reg.MustRegister(OAuthCallbacks)
	reg.MustRegister(GateRejections)
	reg.MustRegister(SessionsCreated)
}
