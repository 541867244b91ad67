package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore persists security policies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByOrg(ctx context.Context, orgID id.OrgID) (*models.SecurityPolicy, error) {
	var (
		policy     models.SecurityPolicy
		rawOrgID   uuid.UUID
		ranges     pq.StringArray
		sensitives pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT org_id, session_timeout_mins, max_sessions_per_user,
			enforce_ip_restrictions, allowed_ip_ranges,
			require_reauth_for_sensitive, sensitive_actions,
			created_at, updated_at
		FROM security_policies WHERE org_id = $1
	`, uuid.UUID(orgID)).Scan(
		&rawOrgID, &policy.SessionTimeoutMins, &policy.MaxSessionsPerUser,
		&policy.EnforceIPRestrictions, &ranges,
		&policy.RequireReauthForSensitive, &sensitives,
		&policy.CreatedAt, &policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("security policy not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find security policy: %w", err)
	}
	policy.OrgID = id.OrgID(rawOrgID)
	policy.AllowedIPRanges = []string(ranges)
	policy.SensitiveActions = []string(sensitives)
	return &policy, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, policy *models.SecurityPolicy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_policies (org_id, session_timeout_mins, max_sessions_per_user,
			enforce_ip_restrictions, allowed_ip_ranges,
			require_reauth_for_sensitive, sensitive_actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (org_id) DO UPDATE SET
			session_timeout_mins = EXCLUDED.session_timeout_mins,
			max_sessions_per_user = EXCLUDED.max_sessions_per_user,
			enforce_ip_restrictions = EXCLUDED.enforce_ip_restrictions,
			allowed_ip_ranges = EXCLUDED.allowed_ip_ranges,
			require_reauth_for_sensitive = EXCLUDED.require_reauth_for_sensitive,
			sensitive_actions = EXCLUDED.sensitive_actions,
			updated_at = EXCLUDED.updated_at
	`,
		uuid.UUID(policy.OrgID), policy.SessionTimeoutMins, policy.MaxSessionsPerUser,
		policy.EnforceIPRestrictions, pq.Array(policy.AllowedIPRanges),
		policy.RequireReauthForSensitive, pq.Array(policy.SensitiveActions),
		policy.CreatedAt, policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert security policy: %w", err)
	}
	return nil
}
