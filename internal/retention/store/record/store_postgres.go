package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"warden/internal/retention/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

const recordColumns = `user_id, status, retention_type, last_login_at, last_activity_at,
		become_inactive_at, anonymize_at, warning_sent_at, approaching_inactive_sent_at,
		inactive_sent_at, created_at, updated_at`

// PostgresStore persists retention records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retention_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		uuid.UUID(record.UserID), string(record.Status), string(record.Type),
		record.LastLoginAt, record.LastActivityAt,
		record.BecomeInactiveAt, record.AnonymizeAt,
		record.Notifications.WarningSentAt, record.Notifications.ApproachingInactiveSentAt,
		record.Notifications.InactiveSentAt, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create retention record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM retention_records WHERE user_id = $1
	`, uuid.UUID(userID))
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("retention record not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find retention record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Update(ctx context.Context, record *models.Record) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE retention_records
		SET status = $2, retention_type = $3, last_login_at = $4, last_activity_at = $5,
			become_inactive_at = $6, anonymize_at = $7, warning_sent_at = $8,
			approaching_inactive_sent_at = $9, inactive_sent_at = $10, updated_at = $11
		WHERE user_id = $1
	`,
		uuid.UUID(record.UserID), string(record.Status), string(record.Type),
		record.LastLoginAt, record.LastActivityAt,
		record.BecomeInactiveAt, record.AnonymizeAt,
		record.Notifications.WarningSentAt, record.Notifications.ApproachingInactiveSentAt,
		record.Notifications.InactiveSentAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update retention record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update retention record rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("retention record not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM retention_records
		WHERE status = $1
		ORDER BY anonymize_at ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list retention records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan retention record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record          models.Record
		userID          uuid.UUID
		status          string
		retentionType   string
		lastActivity    sql.NullTime
		warningSent     sql.NullTime
		finalNoticeSent sql.NullTime
		inactiveSent    sql.NullTime
	)
	if err := row.Scan(&userID, &status, &retentionType,
		&record.LastLoginAt, &lastActivity,
		&record.BecomeInactiveAt, &record.AnonymizeAt,
		&warningSent, &finalNoticeSent, &inactiveSent,
		&record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.UserID = id.UserID(userID)
	record.Status = models.Status(status)
	record.Type = models.Type(retentionType)
	if lastActivity.Valid {
		record.LastActivityAt = &lastActivity.Time
	}
	if warningSent.Valid {
		record.Notifications.WarningSentAt = &warningSent.Time
	}
	if finalNoticeSent.Valid {
		record.Notifications.ApproachingInactiveSentAt = &finalNoticeSent.Time
	}
	if inactiveSent.Valid {
		record.Notifications.InactiveSentAt = &inactiveSent.Time
	}
	return &record, nil
}
