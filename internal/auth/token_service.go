package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Domain identifies a token trust domain. The user and admin domains
// are signed with distinct secrets and never accept each other's tokens.
type Domain string

const (
	UserDomain  Domain = "user"
	AdminDomain Domain = "admin"
)

// ErrInvalidToken is returned for every validation failure. Malformed,
// expired, and wrong-signature tokens are deliberately indistinguishable
// to callers.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims structure
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the user ID from the Subject claim
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenService issues and verifies signed session claims for one trust
// domain. Two instances run side by side: one for users, one for admins.
type TokenService struct {
	secret string
	expiry time.Duration
	issuer string
	domain Domain
}

// TokenServiceConfig holds configuration for TokenService
type TokenServiceConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
	Domain Domain
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	return &TokenService{
		secret: cfg.Secret,
		expiry: cfg.Expiry,
		issuer: cfg.Issuer,
		domain: cfg.Domain,
	}
}

// Issue generates a signed token embedding the subject identity and an
// expiry one token lifetime from now. Admin-domain tokens carry the
// admin claim instead of relying on the subject alone.
func (s *TokenService) Issue(subjectID string) (string, error) {
	now := time.Now()

	claims := Claims{
		Admin: s.domain == AdminDomain,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Validate verifies a token's signature and expiry and returns its
// claims. A token from the other trust domain fails here even before
// expiry: its signature does not verify, and its admin claim would not
// match this domain either.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Admin != (s.domain == AdminDomain) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Expiry returns the token lifetime for this domain
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}
