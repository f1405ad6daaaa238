// Package auth holds the two authentication primitives of the gateway:
// bcrypt-backed role credentials and HS256 session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultRoleTokenValidity    = time.Hour
	DefaultSessionTokenValidity = 7 * 24 * time.Hour
)

// Claims covers both token kinds. Role tokens carry Role (and Admin for the
// admin role); identity tokens carry UserID and Email.
type Claims struct {
	jwt.RegisteredClaims
	Role   Role   `json:"role,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (c *Claims) IsAdmin() bool {
	return c.Admin && c.Role == RoleAdmin
}

// SessionIssuer signs and verifies bearer tokens with a server-held secret.
type SessionIssuer struct {
	secret           []byte
	roleValidity     time.Duration
	identityValidity time.Duration
	now              func() time.Time
}

func NewSessionIssuer(secret string, roleValidity, identityValidity time.Duration) (*SessionIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if roleValidity <= 0 {
		roleValidity = DefaultRoleTokenValidity
	}
	if identityValidity <= 0 {
		identityValidity = DefaultSessionTokenValidity
	}
	return &SessionIssuer{
		secret:           []byte(secret),
		roleValidity:     roleValidity,
		identityValidity: identityValidity,
		now:              time.Now,
	}, nil
}

// RoleValidity is the lifetime of tokens minted by IssueRole.
func (s *SessionIssuer) RoleValidity() time.Duration { return s.roleValidity }

// IssueRole mints a short-lived token for a shared-secret role.
func (s *SessionIssuer) IssueRole(role Role) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(role.String(), s.roleValidity),
		Role:             role,
		Admin:            role == RoleAdmin,
	})
}

// IssueIdentity mints a session token for a multi-tenant user.
func (s *SessionIssuer) IssueIdentity(userID, email string) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(userID, s.identityValidity),
		UserID:           userID,
		Email:            email,
	})
}

// Verify parses token and returns its claims. Expired, tampered and
// malformed tokens all yield common.ErrInvalidToken.
func (s *SessionIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func (s *SessionIssuer) registered(subject string, validity time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
}

func (s *SessionIssuer) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}
