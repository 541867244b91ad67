// Package token issues and parses reauthentication grant tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// GrantClaims is the payload of a reauthentication grant token. The grant is
// scoped to one action and single-use; the jti doubles as the grant store key.
type GrantClaims struct {
	jwt.RegisteredClaims
	Action string `json:"action"`
}

// Issuer signs and verifies grant tokens with a shared HMAC key.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewIssuer(signingKey []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Issuer{signingKey: signingKey, ttl: ttl}
}

// TTL returns the grant lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed grant token for the user and action.
func (i *Issuer) Issue(userID id.UserID, action string, now time.Time) (signed, grantID string, expiresAt time.Time, err error) {
	grantID = uuid.NewString()
	expiresAt = now.Add(i.ttl)
	claims := GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        grantID,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Action: action,
	}
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign grant token: %w", err)
	}
	return signed, grantID, expiresAt, nil
}

// Parse verifies the signature and checks expiry against the supplied clock.
func (i *Issuer) Parse(raw string, now time.Time) (*GrantClaims, error) {
	claims := &GrantClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, sentinel.ErrExpired
		}
		return nil, fmt.Errorf("parse grant token: %w", err)
	}
	return claims, nil
}
