package domain

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/verification/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func domainRows(domain *models.CompanyDomain) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "company_id", "domain", "is_primary", "is_verified",
		"verification_token", "verification_date", "last_checked", "created_at", "updated_at",
	}).AddRow(
		uuid.UUID(domain.ID), uuid.UUID(domain.CompanyID), domain.Domain,
		domain.IsPrimary, domain.IsVerified, domain.VerificationToken,
		domain.VerificationDate, domain.LastChecked, domain.CreatedAt, domain.UpdatedAt,
	)
}

func TestPostgresFindByID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	domain := &models.CompanyDomain{
		ID:        id.NewDomainID(),
		CompanyID: id.NewCompanyID(),
		Domain:    "example.com",
		IsPrimary: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery(`SELECT .+ FROM company_domains WHERE id = \$1`).
		WithArgs(uuid.UUID(domain.ID)).
		WillReturnRows(domainRows(domain))

	found, err := store.FindByID(context.Background(), domain.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ID, found.ID)
	assert.Equal(t, "example.com", found.Domain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	domainID := id.NewDomainID()

	mock.ExpectQuery(`SELECT .+ FROM company_domains WHERE id = \$1`).
		WithArgs(uuid.UUID(domainID)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindByID(context.Background(), domainID)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresSetPrimary(t *testing.T) {
	store, mock := newMockStore(t)
	companyID := id.NewCompanyID()
	domainID := id.NewDomainID()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE company_domains\s+SET is_primary = FALSE`).
		WithArgs(uuid.UUID(companyID), now, uuid.UUID(domainID)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE company_domains\s+SET is_primary = TRUE`).
		WithArgs(uuid.UUID(domainID), uuid.UUID(companyID), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SetPrimary(context.Background(), companyID, domainID, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetPrimaryUnknownDomain(t *testing.T) {
	store, mock := newMockStore(t)
	companyID := id.NewCompanyID()
	domainID := id.NewDomainID()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE company_domains\s+SET is_primary = FALSE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE company_domains\s+SET is_primary = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.SetPrimary(context.Background(), companyID, domainID, now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresExecuteUpdatesUnderLock(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	domain := &models.CompanyDomain{
		ID:        id.NewDomainID(),
		CompanyID: id.NewCompanyID(),
		Domain:    "example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM company_domains WHERE id = \$1 FOR UPDATE`).
		WithArgs(uuid.UUID(domain.ID)).
		WillReturnRows(domainRows(domain))
	mock.ExpectExec(`UPDATE company_domains`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := store.Execute(context.Background(), domain.ID,
		func(*models.CompanyDomain) error { return nil },
		func(d *models.CompanyDomain) { d.ApplyTokenIssued("token", now) },
	)
	require.NoError(t, err)
	assert.Equal(t, "token", updated.VerificationToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecuteValidateShortCircuits(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	domain := &models.CompanyDomain{
		ID:        id.NewDomainID(),
		CompanyID: id.NewCompanyID(),
		Domain:    "example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM company_domains WHERE id = \$1 FOR UPDATE`).
		WithArgs(uuid.UUID(domain.ID)).
		WillReturnRows(domainRows(domain))
	mock.ExpectRollback()

	_, err := store.Execute(context.Background(), domain.ID,
		func(*models.CompanyDomain) error { return sentinel.ErrInvalidState },
		func(*models.CompanyDomain) {},
	)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}
