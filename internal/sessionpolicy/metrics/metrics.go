package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionsEvicted    prometheus.Counter
	SessionsExpired    prometheus.Counter
	SessionsTerminated prometheus.Counter
	IPDenied           prometheus.Counter
	IPAllowed          prometheus.Counter
	ReauthGranted      prometheus.Counter
	ReauthFailed       prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_sessions_created_total",
			Help: "Sessions registered through policy enforcement",
		}),
		SessionsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_sessions_evicted_total",
			Help: "Oldest sessions evicted to honor the per-user session cap",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_sessions_expired_total",
			Help: "Sessions rejected for exceeding the policy timeout",
		}),
		SessionsTerminated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_sessions_terminated_total",
			Help: "Sessions invalidated by administrative termination",
		}),
		IPDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_ip_restriction_denied_total",
			Help: "Requests denied by the IP allow-list",
		}),
		IPAllowed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_ip_restriction_allowed_total",
			Help: "Requests that passed an enforced IP allow-list",
		}),
		ReauthGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_reauth_granted_total",
			Help: "Successful step-up reauthentications",
		}),
		ReauthFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_reauth_failed_total",
			Help: "Failed step-up reauthentication attempts",
		}),
	}
}
