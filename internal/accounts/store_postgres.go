package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed account store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, org_id, email, name, password_hash, account_type,
			anonymized, last_login_at, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(account.ID), uuid.UUID(account.OrgID), account.Email, account.Name,
		account.PasswordHash, string(account.Type), account.Anonymized,
		account.LastLoginAt, account.LastActivityAt, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, email, name, password_hash, account_type,
			anonymized, last_login_at, last_activity_at, created_at, updated_at
		FROM accounts WHERE id = $1
	`, uuid.UUID(userID))
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) ListWithLogin(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, email, name, password_hash, account_type,
			anonymized, last_login_at, last_activity_at, created_at, updated_at
		FROM accounts
		WHERE last_login_at IS NOT NULL AND NOT anonymized
		ORDER BY last_login_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list accounts with login: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) RecordLogin(ctx context.Context, userID id.UserID, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET last_login_at = $2, last_activity_at = $2, updated_at = $2
		WHERE id = $1
	`, uuid.UUID(userID), at)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record login rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// Anonymize scrubs the account's PII in place. Idempotent by construction:
// the scrubbed values are a pure function of the account ID.
func (s *PostgresStore) Anonymize(ctx context.Context, userID id.UserID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET email = 'anonymized+' || id::text || '@invalid.local',
			name = '',
			password_hash = '',
			anonymized = TRUE,
			updated_at = NOW()
		WHERE id = $1
	`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("anonymize account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("anonymize rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		account      Account
		accountID    uuid.UUID
		orgID        uuid.UUID
		accountType  string
		lastLoginAt  sql.NullTime
		lastActivity sql.NullTime
	)
	if err := row.Scan(&accountID, &orgID, &account.Email, &account.Name,
		&account.PasswordHash, &accountType, &account.Anonymized,
		&lastLoginAt, &lastActivity, &account.CreatedAt, &account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	account.ID = id.UserID(accountID)
	account.OrgID = id.OrgID(orgID)
	account.Type = Type(accountType)
	if lastLoginAt.Valid {
		account.LastLoginAt = &lastLoginAt.Time
	}
	if lastActivity.Valid {
		account.LastActivityAt = &lastActivity.Time
	}
	return &account, nil
}
