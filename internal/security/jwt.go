// Package security issues and verifies the bearer tokens of the gateway.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Rrens/partner-chat/internal/domain"
)

const issuer = "partner-chat"

// ErrMissingIdentity is returned for tokens that do not name a partner
var ErrMissingIdentity = errors.New("token carries no partner identity")

// Claims identifies a partner user: the subject is the partner uuid
type Claims struct {
	HospitalID string `json:"hospital_id"`
	jwt.RegisteredClaims
}

// Identity returns the partner identity carried by the claims
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{UUID: c.Subject, HospitalID: c.HospitalID}
}

// JWTManager handles JWT token operations
type JWTManager struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, tokenTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// GenerateToken signs a token for identity
func (m *JWTManager) GenerateToken(identity domain.Identity) (string, error) {
	if err := validateIdentity(identity); err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		HospitalID: identity.HospitalID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UUID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token and returns its claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if err := validateIdentity(claims.Identity()); err != nil {
		return nil, err
	}

	return claims, nil
}

// TokenTTL returns the token lifetime
func (m *JWTManager) TokenTTL() time.Duration {
	return m.tokenTTL
}

func validateIdentity(identity domain.Identity) error {
	if identity.UUID == "" || identity.HospitalID == "" {
		return ErrMissingIdentity
	}
	return nil
}
