package security_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/security"
)

const testSecret = "test-secret-key-with-32-chars!!"

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := security.NewJWTManager(testSecret, 15*time.Minute)
	identity := domain.Identity{UUID: "8f14e45f-ceea-467f-a8d4-1f2b3c4d5e6f", HospitalID: "rs-001"}

	token, err := manager.GenerateToken(identity)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("token is empty")
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	if got := claims.Identity(); got != identity {
		t.Errorf("identity mismatch: got %+v, want %+v", got, identity)
	}

	if claims.ID == "" {
		t.Error("token id is empty")
	}
}

func TestJWTManager_MissingIdentity(t *testing.T) {
	manager := security.NewJWTManager(testSecret, 15*time.Minute)

	_, err := manager.GenerateToken(domain.Identity{UUID: "u-1"})
	if !errors.Is(err, security.ErrMissingIdentity) {
		t.Errorf("expected ErrMissingIdentity, got %v", err)
	}

	// a well signed token without hospital id is still rejected
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "partner-chat",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	token, err := raw.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	_, err = manager.ValidateToken(token)
	if !errors.Is(err, security.ErrMissingIdentity) {
		t.Errorf("expected ErrMissingIdentity, got %v", err)
	}
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := security.NewJWTManager(testSecret, 15*time.Minute)
	identity := domain.Identity{UUID: "u-1", HospitalID: "h-9"}

	// Invalid token format
	_, err := manager.ValidateToken("invalid-token")
	if err == nil {
		t.Error("expected error for invalid token, got nil")
	}

	// Empty token
	_, err = manager.ValidateToken("")
	if err == nil {
		t.Error("expected error for empty token, got nil")
	}

	// Token signed with different secret
	otherManager := security.NewJWTManager("different-secret-key-32-chars!!", 15*time.Minute)
	token, _ := otherManager.GenerateToken(identity)

	_, err = manager.ValidateToken(token)
	if err == nil {
		t.Error("expected error for token signed with different secret, got nil")
	}

	// Expired token
	expired := security.NewJWTManager(testSecret, -time.Minute)
	token, _ = expired.GenerateToken(identity)

	_, err = manager.ValidateToken(token)
	if err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestJWTManager_TokenTTL(t *testing.T) {
	ttl := 30 * time.Minute
	manager := security.NewJWTManager(testSecret, ttl)

	if manager.TokenTTL() != ttl {
		t.Errorf("token TTL mismatch: got %v, want %v", manager.TokenTTL(), ttl)
	}
}
