package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	VerificationsInitiated prometheus.Counter
	ChecksVerified         prometheus.Counter
	ChecksFailed           prometheus.Counter
	DNSLookupDuration      prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		VerificationsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_initiated_total",
			Help: "Total number of domain verification challenges issued",
		}),
		ChecksVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_checks_verified_total",
			Help: "Total number of verification checks that matched the TXT challenge",
		}),
		ChecksFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_checks_failed_total",
			Help: "Total number of verification checks that did not verify the domain",
		}),
		DNSLookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_verification_dns_lookup_seconds",
			Help:    "Duration of DNS TXT lookups during verification checks",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementInitiated() {
	m.VerificationsInitiated.Inc()
}

func (m *Metrics) ObserveCheck(verified bool, seconds float64) {
	if verified {
		m.ChecksVerified.Inc()
	} else {
		m.ChecksFailed.Inc()
	}
	m.DNSLookupDuration.Observe(seconds)
}
