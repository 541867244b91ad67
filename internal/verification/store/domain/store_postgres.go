package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"warden/internal/verification/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

const domainColumns = `id, company_id, domain, is_primary, is_verified,
		verification_token, verification_date, last_checked, created_at, updated_at`

// PostgresStore persists company domains in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, domain *models.CompanyDomain) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO company_domains (`+domainColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(domain.ID), uuid.UUID(domain.CompanyID), domain.Domain,
		domain.IsPrimary, domain.IsVerified, domain.VerificationToken,
		domain.VerificationDate, domain.LastChecked, domain.CreatedAt, domain.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("domain already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, domainID id.DomainID) (*models.CompanyDomain, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+domainColumns+` FROM company_domains WHERE id = $1
	`, uuid.UUID(domainID))
	domain, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find domain: %w", err)
	}
	return domain, nil
}

func (s *PostgresStore) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.CompanyDomain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+domainColumns+` FROM company_domains
		WHERE company_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(companyID))
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var domains []*models.CompanyDomain
	for rows.Next() {
		domain, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, domainID id.DomainID) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM company_domains WHERE id = $1
	`, uuid.UUID(domainID))
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete domain rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// SetPrimary demotes the current primary and promotes the target inside one
// transaction so the one-primary partial unique index never trips.
func (s *PostgresStore) SetPrimary(ctx context.Context, companyID id.CompanyID, domainID id.DomainID, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set primary: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE company_domains
		SET is_primary = FALSE, updated_at = $2
		WHERE company_id = $1 AND is_primary AND id <> $3
	`, uuid.UUID(companyID), now, uuid.UUID(domainID)); err != nil {
		return fmt.Errorf("demote primary: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE company_domains
		SET is_primary = TRUE, updated_at = $3
		WHERE id = $1 AND company_id = $2
	`, uuid.UUID(domainID), uuid.UUID(companyID), now)
	if err != nil {
		return fmt.Errorf("promote primary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("promote primary rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
	}
	return tx.Commit()
}

// Execute loads the row FOR UPDATE, runs validate then mutate, and writes the
// result back inside one transaction.
func (s *PostgresStore) Execute(ctx context.Context, domainID id.DomainID,
	validate func(*models.CompanyDomain) error,
	mutate func(*models.CompanyDomain),
) (*models.CompanyDomain, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin domain update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+domainColumns+` FROM company_domains WHERE id = $1 FOR UPDATE
	`, uuid.UUID(domainID))
	domain, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock domain: %w", err)
	}

	if err := validate(domain); err != nil {
		return nil, err
	}
	mutate(domain)

	if _, err := tx.ExecContext(ctx, `
		UPDATE company_domains
		SET is_primary = $2, is_verified = $3, verification_token = $4,
			verification_date = $5, last_checked = $6, updated_at = $7
		WHERE id = $1
	`,
		uuid.UUID(domain.ID), domain.IsPrimary, domain.IsVerified,
		domain.VerificationToken, domain.VerificationDate, domain.LastChecked,
		domain.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update domain: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit domain update: %w", err)
	}
	return domain, nil
}

func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var pgErr coder
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (*models.CompanyDomain, error) {
	var (
		domain           models.CompanyDomain
		domainID         uuid.UUID
		companyID        uuid.UUID
		verificationDate sql.NullTime
		lastChecked      sql.NullTime
	)
	if err := row.Scan(&domainID, &companyID, &domain.Domain,
		&domain.IsPrimary, &domain.IsVerified, &domain.VerificationToken,
		&verificationDate, &lastChecked, &domain.CreatedAt, &domain.UpdatedAt,
	); err != nil {
		return nil, err
	}
	domain.ID = id.DomainID(domainID)
	domain.CompanyID = id.CompanyID(companyID)
	if verificationDate.Valid {
		domain.VerificationDate = &verificationDate.Time
	}
	if lastChecked.Valid {
		domain.LastChecked = &lastChecked.Time
	}
	return &domain, nil
}
