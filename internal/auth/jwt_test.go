package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

var admin = &model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}

func TestIssueAndValidateToken(t *testing.T) {
	iss := NewIssuer("test-secret-key", 0)

	token, issued, err := iss.Issue(admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := iss.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != 1 {
		t.Errorf("expected user_id 1, got %d", claims.UserID)
	}
	if claims.Username != "admin" {
		t.Errorf("expected username 'admin', got %q", claims.Username)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("expected role 'admin', got %q", claims.Role)
	}
	if claims.ID != issued.ID || claims.ID == "" {
		t.Errorf("expected jti %q, got %q", issued.ID, claims.ID)
	}
}

func TestTokensHaveUniqueIDs(t *testing.T) {
	iss := NewIssuer("s", 0)
	_, a, _ := iss.Issue(admin)
	_, b, _ := iss.Issue(admin)
	if a.ID == b.ID {
		t.Errorf("expected distinct JTIs, both %q", a.ID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _, _ := NewIssuer("secret1", 0).Issue(admin)

	_, err := NewIssuer("secret2", 0).Validate(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	if _, err := NewIssuer("secret", 0).Validate("not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestTokenExpiry(t *testing.T) {
	iss := NewIssuer("test", time.Hour)
	start := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return start }

	token, claims, _ := iss.Issue(admin)
	if !claims.ExpiresAt.Time.Equal(start.Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", start.Add(time.Hour), claims.ExpiresAt.Time)
	}

	iss.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := iss.Validate(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Correct-h0rse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "Correct-h0rse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("expected wrong password not to match")
	}
}

func TestGeneratePasswordSatisfiesPolicy(t *testing.T) {
	for i := 0; i < 20; i++ {
		p, err := GeneratePassword(16)
		if err != nil {
			t.Fatalf("GeneratePassword: %v", err)
		}
		if len(p) != 16 {
			t.Errorf("expected length 16, got %d", len(p))
		}
		if err := model.ValidatePassword(p); err != nil {
			t.Errorf("generated password %q fails policy: %v", p, err)
		}
	}
}
