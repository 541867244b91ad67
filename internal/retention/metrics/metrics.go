package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ScansTotal             prometheus.Counter
	ScanDuration           prometheus.Histogram
	AccountsChecked        prometheus.Counter
	AccountsWarned         prometheus.Counter
	AccountsInactive       prometheus.Counter
	AccountsMarkedForScrub prometheus.Counter
	ScanErrors             prometheus.Counter
	AnonymizedTotal        prometheus.Counter
	AnonymizeFailures      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ScansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_scans_total",
			Help: "Total number of retention scan runs",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_retention_scan_duration_seconds",
			Help:    "Duration of retention scan runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		AccountsChecked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_accounts_checked_total",
			Help: "Accounts evaluated across all retention scans",
		}),
		AccountsWarned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_accounts_warned_total",
			Help: "Accounts that entered the warning state",
		}),
		AccountsInactive: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_accounts_inactive_total",
			Help: "Accounts marked inactive",
		}),
		AccountsMarkedForScrub: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_accounts_marked_for_anonymization_total",
			Help: "Accounts marked for anonymization",
		}),
		ScanErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_scan_errors_total",
			Help: "Per-account failures during retention scans",
		}),
		AnonymizedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_anonymized_total",
			Help: "Accounts successfully anonymized",
		}),
		AnonymizeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_retention_anonymize_failures_total",
			Help: "Anonymization attempts that failed and will be retried",
		}),
	}
}

// ObserveScan records one completed scan run.
func (m *Metrics) ObserveScan(duration time.Duration, checked, warned, inactive, marked, errors int) {
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(duration.Seconds())
	m.AccountsChecked.Add(float64(checked))
	m.AccountsWarned.Add(float64(warned))
	m.AccountsInactive.Add(float64(inactive))
	m.AccountsMarkedForScrub.Add(float64(marked))
	m.ScanErrors.Add(float64(errors))
}

// ObserveAnonymization records one anonymization pass.
func (m *Metrics) ObserveAnonymization(processed, failed int) {
	m.AnonymizedTotal.Add(float64(processed))
	m.AnonymizeFailures.Add(float64(failed))
}
