package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), 5*time.Minute)
	userID := id.NewUserID()
	now := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)

	signed, grantID, expiresAt, err := issuer.Issue(userID, "delete_account", now)
	require.NoError(t, err)
	assert.NotEmpty(t, grantID)
	assert.Equal(t, now.Add(5*time.Minute), expiresAt)

	claims, err := issuer.Parse(signed, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, grantID, claims.ID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "delete_account", claims.Action)
}

func TestParseExpired(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), 5*time.Minute)
	now := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)

	signed, _, _, err := issuer.Issue(id.NewUserID(), "export_data", now)
	require.NoError(t, err)

	_, err = issuer.Parse(signed, now.Add(6*time.Minute))
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestParseRejectsForeignKey(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), 5*time.Minute)
	other := NewIssuer([]byte("different"), 5*time.Minute)
	now := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)

	signed, _, _, err := other.Issue(id.NewUserID(), "export_data", now)
	require.NoError(t, err)

	_, err = issuer.Parse(signed, now)
	assert.Error(t, err)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, 5*time.Minute, NewIssuer([]byte("secret"), 0).TTL())
}
