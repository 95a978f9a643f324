package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "One-time codes issued, by purpose",
		},
		[]string{"purpose"},
	)

	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "One-time code verification attempts, by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_refreshes_total",
			Help: "Refresh token exchanges by outcome",
		},
		[]string{"outcome"},
	)

	RefreshReuseDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_reuse_detected_total",
			Help: "Rotated refresh tokens presented again",
		},
	)

	RegistrationSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_steps_total",
			Help: "Completed registration steps by resulting stage",
		},
		[]string{"stage"},
	)

	TradeDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_decisions_total",
			Help: "Trade application reviews by decision",
		},
		[]string{"decision"},
	)
)
