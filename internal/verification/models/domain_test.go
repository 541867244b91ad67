package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

func TestNormalizeHostname(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases", input: "Example.COM", expected: "example.com"},
		{name: "strips www", input: "www.example.com", expected: "example.com"},
		{name: "strips trailing dot", input: "example.com.", expected: "example.com"},
		{name: "trims whitespace", input: "  example.com  ", expected: "example.com"},
		{name: "keeps subdomains", input: "app.example.com", expected: "app.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeHostname(tt.input))
		})
	}
}

func TestNewCompanyDomain(t *testing.T) {
	now := time.Now()
	companyID := id.NewCompanyID()

	t.Run("valid hostname", func(t *testing.T) {
		domain, err := NewCompanyDomain(id.NewDomainID(), companyID, "WWW.Example.com", true, now)
		require.NoError(t, err)
		assert.Equal(t, "example.com", domain.Domain)
		assert.True(t, domain.IsPrimary)
		assert.False(t, domain.IsVerified)
		assert.Empty(t, domain.VerificationToken)
	})

	t.Run("rejects empty hostname", func(t *testing.T) {
		_, err := NewCompanyDomain(id.NewDomainID(), companyID, "   ", false, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects hostname without dot", func(t *testing.T) {
		_, err := NewCompanyDomain(id.NewDomainID(), companyID, "localhost", false, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestCompanyDomainTransitions(t *testing.T) {
	now := time.Now()
	domain, err := NewCompanyDomain(id.NewDomainID(), id.NewCompanyID(), "example.com", false, now)
	require.NoError(t, err)

	t.Run("check before initiation is rejected", func(t *testing.T) {
		err := domain.CanCheck()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	t.Run("token issuance enables checking", func(t *testing.T) {
		domain.ApplyTokenIssued("token-1", now)
		assert.NoError(t, domain.CanCheck())
	})

	t.Run("successful check sets verified state", func(t *testing.T) {
		checkedAt := now.Add(time.Minute)
		domain.ApplyCheckResult(true, checkedAt)
		assert.True(t, domain.IsVerified)
		require.NotNil(t, domain.VerificationDate)
		assert.Equal(t, checkedAt, *domain.VerificationDate)
		require.NotNil(t, domain.LastChecked)
		assert.Equal(t, checkedAt, *domain.LastChecked)
	})

	t.Run("failed check clears verified state but records the attempt", func(t *testing.T) {
		checkedAt := now.Add(2 * time.Minute)
		domain.ApplyCheckResult(false, checkedAt)
		assert.False(t, domain.IsVerified)
		assert.Nil(t, domain.VerificationDate)
		require.NotNil(t, domain.LastChecked)
		assert.Equal(t, checkedAt, *domain.LastChecked)
	})

	t.Run("reissuing the token clears prior proof", func(t *testing.T) {
		domain.ApplyCheckResult(true, now)
		domain.ApplyTokenIssued("token-2", now.Add(3*time.Minute))
		assert.False(t, domain.IsVerified)
		assert.Nil(t, domain.VerificationDate)
		assert.Equal(t, "token-2", domain.VerificationToken)
	})
}

func TestCompanyProfileDeriveDomainName(t *testing.T) {
	tests := []struct {
		name     string
		website  string
		expected string
		wantCode dErrors.Code
	}{
		{name: "full url", website: "https://www.example.com/about", expected: "example.com"},
		{name: "bare hostname", website: "example.com", expected: "example.com"},
		{name: "http scheme", website: "http://app.example.io", expected: "app.example.io"},
		{name: "empty website", website: "", wantCode: dErrors.CodePreconditionFailed},
		{name: "garbage", website: "://///", wantCode: dErrors.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &CompanyProfile{Website: tt.website}
			derived, err := profile.DeriveDomainName()
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, tt.wantCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, derived)
		})
	}
}
