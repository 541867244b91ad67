package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"warden/internal/verification/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

const profileColumns = `company_id, website, contact_email, domain_name,
		domain_verification_token, domain_verified, domain_last_checked,
		created_at, updated_at`

// PostgresStore persists company profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, profile *models.CompanyProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO company_profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(profile.CompanyID), profile.Website, profile.ContactEmail,
		profile.DomainName, profile.DomainVerificationToken, profile.DomainVerified,
		profile.DomainLastChecked, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCompany(ctx context.Context, companyID id.CompanyID) (*models.CompanyProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM company_profiles WHERE company_id = $1
	`, uuid.UUID(companyID))
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) Execute(ctx context.Context, companyID id.CompanyID,
	validate func(*models.CompanyProfile) error,
	mutate func(*models.CompanyProfile),
) (*models.CompanyProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM company_profiles WHERE company_id = $1 FOR UPDATE
	`, uuid.UUID(companyID))
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock profile: %w", err)
	}

	if err := validate(profile); err != nil {
		return nil, err
	}
	mutate(profile)

	if _, err := tx.ExecContext(ctx, `
		UPDATE company_profiles
		SET website = $2, contact_email = $3, domain_name = $4,
			domain_verification_token = $5, domain_verified = $6,
			domain_last_checked = $7, updated_at = $8
		WHERE company_id = $1
	`,
		uuid.UUID(profile.CompanyID), profile.Website, profile.ContactEmail,
		profile.DomainName, profile.DomainVerificationToken, profile.DomainVerified,
		profile.DomainLastChecked, profile.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit profile update: %w", err)
	}
	return profile, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.CompanyProfile, error) {
	var (
		profile     models.CompanyProfile
		companyID   uuid.UUID
		lastChecked sql.NullTime
	)
	if err := row.Scan(&companyID, &profile.Website, &profile.ContactEmail,
		&profile.DomainName, &profile.DomainVerificationToken, &profile.DomainVerified,
		&lastChecked, &profile.CreatedAt, &profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	profile.CompanyID = id.CompanyID(companyID)
	if lastChecked.Valid {
		profile.DomainLastChecked = &lastChecked.Time
	}
	return &profile, nil
}
