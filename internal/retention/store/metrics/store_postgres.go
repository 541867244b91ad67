package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"warden/internal/retention/models"
)

// PostgresStore persists daily retention metrics in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert writes the row for the metrics' day, replacing any prior run's
// counts for the same date.
func (s *PostgresStore) Upsert(ctx context.Context, metrics *models.DailyMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retention_metrics (day,
			active_personal, active_business, warning_personal, warning_business,
			inactive_personal, inactive_business, anonymizing_personal, anonymizing_business,
			anonymized_personal, anonymized_business, scan_duration_ms, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (day) DO UPDATE SET
			active_personal = EXCLUDED.active_personal,
			active_business = EXCLUDED.active_business,
			warning_personal = EXCLUDED.warning_personal,
			warning_business = EXCLUDED.warning_business,
			inactive_personal = EXCLUDED.inactive_personal,
			inactive_business = EXCLUDED.inactive_business,
			anonymizing_personal = EXCLUDED.anonymizing_personal,
			anonymizing_business = EXCLUDED.anonymizing_business,
			anonymized_personal = EXCLUDED.anonymized_personal,
			anonymized_business = EXCLUDED.anonymized_business,
			scan_duration_ms = EXCLUDED.scan_duration_ms,
			updated_at = NOW()
	`,
		metrics.Day,
		metrics.ActivePersonal, metrics.ActiveBusiness,
		metrics.WarningPersonal, metrics.WarningBusiness,
		metrics.InactivePersonal, metrics.InactiveBusiness,
		metrics.AnonymizingPersonal, metrics.AnonymizingBusiness,
		metrics.AnonymizedPersonal, metrics.AnonymizedBusiness,
		metrics.ScanDuration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert retention metrics: %w", err)
	}
	return nil
}

// FindByDay returns the row for the given day, or nil when absent.
func (s *PostgresStore) FindByDay(ctx context.Context, day time.Time) (*models.DailyMetrics, error) {
	var (
		metrics models.DailyMetrics
		ms      int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT day,
			active_personal, active_business, warning_personal, warning_business,
			inactive_personal, inactive_business, anonymizing_personal, anonymizing_business,
			anonymized_personal, anonymized_business, scan_duration_ms
		FROM retention_metrics WHERE day = $1
	`, day).Scan(&metrics.Day,
		&metrics.ActivePersonal, &metrics.ActiveBusiness,
		&metrics.WarningPersonal, &metrics.WarningBusiness,
		&metrics.InactivePersonal, &metrics.InactiveBusiness,
		&metrics.AnonymizingPersonal, &metrics.AnonymizingBusiness,
		&metrics.AnonymizedPersonal, &metrics.AnonymizedBusiness, &ms,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find retention metrics: %w", err)
	}
	metrics.ScanDuration = time.Duration(ms) * time.Millisecond
	return &metrics, nil
}
