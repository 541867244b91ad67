package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/notification"
	"warden/internal/verification/dns"
	"warden/internal/verification/models"
	domainstore "warden/internal/verification/store/domain"
	profilestore "warden/internal/verification/store/profile"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	auditmem "warden/pkg/platform/audit/store/memory"
	"warden/pkg/requestcontext"
)

// fakeResolver serves canned TXT responses keyed by hostname. A missing
// hostname behaves like NXDOMAIN.
type fakeResolver struct {
	records map[string][][]string
	err     error
}

func (f *fakeResolver) LookupTXT(_ context.Context, hostname string) ([][]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.records[hostname]
	if !ok {
		return nil, dns.ErrNoRecords
	}
	return records, nil
}

func (f *fakeResolver) set(hostname string, values ...string) {
	record := make([][]string, 0, len(values))
	for _, value := range values {
		record = append(record, []string{value})
	}
	f.records[hostname] = record
}

type VerificationServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	company  id.CompanyID
	domains  *domainstore.InMemoryStore
	profiles *profilestore.InMemoryStore
	resolver *fakeResolver
	notifier *notification.Recorder
	events   *auditmem.Store
	service  *Service
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	s.company = id.NewCompanyID()
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.domains = domainstore.NewInMemoryStore()
	s.profiles = profilestore.NewInMemoryStore()
	s.resolver = &fakeResolver{records: make(map[string][][]string)}
	s.notifier = notification.NewRecorder()
	s.events = auditmem.New()
	s.service = NewService(s.domains, s.profiles, s.resolver,
		WithNotifier(s.notifier),
		WithAuditPublisher(audit.NewPublisher(s.events)),
	)
}

func (s *VerificationServiceSuite) addDomain(hostname string) *models.CompanyDomain {
	domain, err := s.service.AddDomain(s.ctx, s.company, hostname, false)
	s.Require().NoError(err)
	return domain
}

func (s *VerificationServiceSuite) TestAddDomain() {
	s.Run("first domain becomes primary", func() {
		domain := s.addDomain("example.com")
		s.True(domain.IsPrimary)
	})

	s.Run("second domain is not primary by default", func() {
		second := s.addDomain("other.example.org")
		s.False(second.IsPrimary)
	})

	s.Run("duplicate hostname conflicts", func() {
		_, err := s.service.AddDomain(s.ctx, s.company, "Example.COM", false)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("another company can register the same hostname", func() {
		_, err := s.service.AddDomain(s.ctx, id.NewCompanyID(), "example.com", false)
		s.NoError(err)
	})
}

func (s *VerificationServiceSuite) TestInitiateDomainVerification() {
	domain := s.addDomain("example.com")

	s.Run("issues a prefixed token", func() {
		result, err := s.service.InitiateDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.Equal("example.com", result.Domain)
		s.Contains(result.Token, TokenPrefix)
	})

	s.Run("re-initiation replaces the token and clears proof", func() {
		first, err := s.service.InitiateDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		second, err := s.service.InitiateDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.NotEqual(first.Token, second.Token)

		stored, err := s.domains.FindByID(s.ctx, domain.ID)
		s.Require().NoError(err)
		s.Equal(second.Token, stored.VerificationToken)
		s.False(stored.IsVerified)
	})

	s.Run("other company is denied", func() {
		_, err := s.service.InitiateDomainVerification(s.ctx, id.NewCompanyID(), domain.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown domain is not found", func() {
		_, err := s.service.InitiateDomainVerification(s.ctx, s.company, id.NewDomainID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *VerificationServiceSuite) TestCheckDomainVerification() {
	domain := s.addDomain("example.com")

	s.Run("check before initiation fails the precondition", func() {
		_, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	initiated, err := s.service.InitiateDomainVerification(s.ctx, s.company, domain.ID)
	s.Require().NoError(err)

	s.Run("no TXT records", func() {
		result, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.False(result.Verified)
		s.Equal("No TXT records found for the domain", result.Message)
	})

	s.Run("records without the token", func() {
		s.resolver.set("example.com", "v=spf1 include:example.net ~all")
		result, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.False(result.Verified)
		s.Equal("Verification token not found in TXT records.", result.Message)

		stored, err := s.domains.FindByID(s.ctx, domain.ID)
		s.Require().NoError(err)
		s.NotNil(stored.LastChecked)
		s.False(stored.IsVerified)
	})

	s.Run("matching token verifies", func() {
		s.resolver.set("example.com", "v=spf1 include:example.net ~all", initiated.Token)
		result, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.True(result.Verified)
		s.Equal("Domain successfully verified.", result.Message)

		stored, err := s.domains.FindByID(s.ctx, domain.ID)
		s.Require().NoError(err)
		s.True(stored.IsVerified)
		s.NotNil(stored.VerificationDate)
	})

	s.Run("re-check after success stays verified", func() {
		result, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.True(result.Verified)
	})

	s.Run("timeout maps to retryable message", func() {
		s.resolver.err = dns.ErrTimeout
		result, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.False(result.Verified)
		s.Equal("DNS lookup timed out, try again later", result.Message)
		s.resolver.err = nil
	})

	s.Run("unexpected resolver failure maps to generic message", func() {
		s.resolver.err = context.Canceled
		result, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
		s.Require().NoError(err)
		s.False(result.Verified)
		s.Equal("error occurred during DNS lookup", result.Message)
		s.resolver.err = nil
	})
}

func (s *VerificationServiceSuite) TestCheckMultiPartTXTRecord() {
	domain := s.addDomain("example.com")
	initiated, err := s.service.InitiateDomainVerification(s.ctx, s.company, domain.ID)
	s.Require().NoError(err)

	half := len(initiated.Token) / 2
	s.resolver.records["example.com"] = [][]string{
		{initiated.Token[:half], initiated.Token[half:]},
	}

	result, err := s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
	s.Require().NoError(err)
	s.True(result.Verified)
}

func (s *VerificationServiceSuite) TestRemoveDomainPromotesReplacement() {
	first := s.addDomain("example.com")
	second := s.addDomain("other.example.org")
	s.True(first.IsPrimary)

	s.Require().NoError(s.service.RemoveDomain(s.ctx, s.company, first.ID))

	remaining, err := s.service.ListDomains(s.ctx, s.company)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(second.ID, remaining[0].ID)
	s.True(remaining[0].IsPrimary)
}

func (s *VerificationServiceSuite) TestSetPrimaryDomain() {
	first := s.addDomain("example.com")
	second := s.addDomain("other.example.org")

	s.Require().NoError(s.service.SetPrimaryDomain(s.ctx, s.company, second.ID))

	domains, err := s.service.ListDomains(s.ctx, s.company)
	s.Require().NoError(err)
	s.Require().Len(domains, 2)
	for _, domain := range domains {
		switch domain.ID {
		case first.ID:
			s.False(domain.IsPrimary)
		case second.ID:
			s.True(domain.IsPrimary)
		}
	}
}

func (s *VerificationServiceSuite) TestProfileVerification() {
	profile := &models.CompanyProfile{
		CompanyID:    s.company,
		Website:      "https://www.example.com",
		ContactEmail: "owner@example.com",
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.profiles.Create(s.ctx, profile))

	s.Run("initiation derives the domain from the website", func() {
		result, err := s.service.InitiateProfileDomainVerification(s.ctx, s.company, s.company)
		s.Require().NoError(err)
		s.Equal("example.com", result.Domain)
		s.Contains(result.Token, TokenPrefix)
	})

	s.Run("successful check notifies the contact", func() {
		initiated, err := s.service.InitiateProfileDomainVerification(s.ctx, s.company, s.company)
		s.Require().NoError(err)
		s.resolver.set("example.com", initiated.Token)

		result, err := s.service.CheckProfileDomainVerification(s.ctx, s.company, s.company)
		s.Require().NoError(err)
		s.True(result.Verified)

		sent := s.notifier.Sent()
		s.Require().Len(sent, 1)
		s.Equal("owner@example.com", sent[0].To)
	})

	s.Run("missing website blocks initiation", func() {
		bare := id.NewCompanyID()
		s.Require().NoError(s.profiles.Create(s.ctx, &models.CompanyProfile{CompanyID: bare}))
		_, err := s.service.InitiateProfileDomainVerification(s.ctx, bare, bare)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})
}

func (s *VerificationServiceSuite) TestAuditTrail() {
	domain := s.addDomain("example.com")
	initiated, err := s.service.InitiateDomainVerification(s.ctx, s.company, domain.ID)
	s.Require().NoError(err)
	s.resolver.set("example.com", initiated.Token)
	_, err = s.service.CheckDomainVerification(s.ctx, s.company, domain.ID)
	s.Require().NoError(err)

	actions := make([]string, 0)
	for _, event := range s.events.All() {
		actions = append(actions, event.Action)
	}
	s.Contains(actions, string(audit.EventDomainAdded))
	s.Contains(actions, string(audit.EventDomainVerificationStarted))
	s.Contains(actions, string(audit.EventDomainVerified))
}
