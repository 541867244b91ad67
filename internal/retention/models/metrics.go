package models

import "time"

// DailyMetrics aggregates retention record counts for one calendar day.
// Each scan run upserts the row for its own date.
type DailyMetrics struct {
	Day                 time.Time     `json:"day"`
	ActivePersonal      int           `json:"active_personal"`
	ActiveBusiness      int           `json:"active_business"`
	WarningPersonal     int           `json:"warning_personal"`
	WarningBusiness     int           `json:"warning_business"`
	InactivePersonal    int           `json:"inactive_personal"`
	InactiveBusiness    int           `json:"inactive_business"`
	AnonymizingPersonal int           `json:"anonymizing_personal"`
	AnonymizingBusiness int           `json:"anonymizing_business"`
	AnonymizedPersonal  int           `json:"anonymized_personal"`
	AnonymizedBusiness  int           `json:"anonymized_business"`
	ScanDuration        time.Duration `json:"scan_duration"`
}

// NewDailyMetrics starts an empty row for the day containing t (UTC).
func NewDailyMetrics(t time.Time) *DailyMetrics {
	year, month, day := t.UTC().Date()
	return &DailyMetrics{Day: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Count tallies one record. GRACE_PERIOD counts with INACTIVE since the grace
// window is part of the inactive phase.
func (m *DailyMetrics) Count(status Status, accountType Type) {
	business := accountType == TypeBusiness
	switch status {
	case StatusActive:
		m.bump(&m.ActivePersonal, &m.ActiveBusiness, business)
	case StatusWarning:
		m.bump(&m.WarningPersonal, &m.WarningBusiness, business)
	case StatusInactive, StatusGracePeriod:
		m.bump(&m.InactivePersonal, &m.InactiveBusiness, business)
	case StatusAnonymizing:
		m.bump(&m.AnonymizingPersonal, &m.AnonymizingBusiness, business)
	case StatusAnonymized:
		m.bump(&m.AnonymizedPersonal, &m.AnonymizedBusiness, business)
	}
}

func (m *DailyMetrics) bump(personal, business *int, isBusiness bool) {
	if isBusiness {
		*business++
		return
	}
	*personal++
}
