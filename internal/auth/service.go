// Package auth authenticates the administrator and issues and validates the
// bearer tokens that protect the admin API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dockerx/cms/internal/apperr"
	"github.com/dockerx/cms/internal/config"
)

const adminRole = "admin"

// ErrInvalidCredentials is returned by Login for a wrong username or password.
var ErrInvalidCredentials = &apperr.Error{Kind: apperr.ErrAuth, Msg: "invalid username or password"}

// ErrInvalidToken is returned when a token fails validation.
var ErrInvalidToken = &apperr.Error{Kind: apperr.ErrAuth, Msg: "invalid or expired token"}

// Claims are the JWT claims issued to the administrator.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Token is a freshly issued bearer token.
type Token struct {
	Token     string    `json:"token"     example:"eyJhbGci..."`
	Username  string    `json:"username"  example:"admin"`
	ExpiresAt time.Time `json:"expiresAt" example:"2026-02-27T14:48:34Z"`
}

// Service checks admin credentials and handles JWTs.
type Service struct {
	username     string
	passwordHash []byte
	key          []byte
	issuer       string
	audience     string
	ttl          time.Duration
	now          func() time.Time
}

// NewService hashes the configured admin password so the plain text is not
// kept in memory.
func NewService(jwtCfg config.JWT, admin config.Admin) (*Service, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Service{
		username:     admin.Username,
		passwordHash: hash,
		key:          []byte(jwtCfg.Key),
		issuer:       jwtCfg.Issuer,
		audience:     jwtCfg.Audience,
		ttl:          jwtCfg.TTL,
		now:          time.Now,
	}, nil
}

// Login verifies the credentials and issues a token.
func (s *Service) Login(_ context.Context, username, password string) (*Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(username)
}

// ValidateToken parses and verifies token and returns its subject.
func (s *Service) ValidateToken(token string) (string, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse verifies signature, issuer, audience and expiry.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != adminRole || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// issueToken creates a signed JWT for username.
func (s *Service) issueToken(username string) (*Token, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Token: signed, Username: username, ExpiresAt: expires}, nil
}

// IsAuthError reports whether err is a credential or token failure.
func IsAuthError(err error) bool {
	return errors.Is(err, apperr.ErrAuth)
}
