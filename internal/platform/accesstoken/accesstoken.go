// Package accesstoken issues and validates the API's bearer tokens.
package accesstoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"warden/internal/platform/middleware"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

type accessClaims struct {
	jwt.RegisteredClaims
	OrgID     string `json:"org_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	SessionID string `json:"sid,omitempty"`
}

// Manager signs and verifies access tokens with a shared HMAC key.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewManager(signingKey []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{signingKey: signingKey, ttl: ttl}
}

// Issue creates a signed access token bound to the user's session.
func (m *Manager) Issue(userID id.UserID, orgID id.OrgID, companyID id.CompanyID, sessionID id.SessionID, now time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		SessionID: sessionID.String(),
	}
	if !orgID.IsNil() {
		claims.OrgID = orgID.String()
	}
	if !companyID.IsNil() {
		claims.CompanyID = companyID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateToken implements middleware.TokenValidator.
func (m *Manager) ValidateToken(raw string) (*middleware.Claims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, sentinel.ErrExpired
		}
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return &middleware.Claims{
		UserID:    claims.Subject,
		OrgID:     claims.OrgID,
		CompanyID: claims.CompanyID,
		SessionID: claims.SessionID,
	}, nil
}
