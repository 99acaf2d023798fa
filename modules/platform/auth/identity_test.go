package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return token
}

func TestParseIdentity(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, jwt.MapClaims{
		"sub":                "8c1f-uid",
		"preferred_username": "alice",
		"email":              "alice@example.com",
		"exp":                exp.Unix(),
	})

	id, err := ParseIdentity("Bearer " + token)
	if err != nil {
		t.Fatalf("ParseIdentity error: %v", err)
	}
	if id.UserID != "8c1f-uid" || id.Username != "alice" || id.Email != "alice@example.com" {
		t.Errorf("identity = %+v", id)
	}
	if !id.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, exp)
	}
	if id.Expired(time.Now()) {
		t.Errorf("token should not be expired yet")
	}
	if !id.Expired(exp.Add(time.Minute)) {
		t.Errorf("token should be expired after exp")
	}
	if id.DisplayName() != "alice" {
		t.Errorf("DisplayName() = %q", id.DisplayName())
	}
}

func TestParseIdentityRejectsGarbage(t *testing.T) {
	if _, err := ParseIdentity("not-a-jwt"); err == nil {
		t.Errorf("ParseIdentity should fail on a malformed token")
	}
	if _, err := ParseIdentity(""); !errors.Is(err, ErrNoToken) {
		t.Errorf("ParseIdentity(\"\") error = %v, want ErrNoToken", err)
	}
}

func TestResolveUserID(t *testing.T) {
	withSub := signToken(t, jwt.MapClaims{"sub": "from-token"})
	withoutSub := signToken(t, jwt.MapClaims{"preferred_username": "bob"})

	tests := []struct {
		name       string
		configured string
		token      string
		want       string
		wantErr    error
	}{
		{"configured wins", "admin", withSub, "admin", nil},
		{"token subject", "", withSub, "from-token", nil},
		{"no subject", "", withoutSub, "", ErrNoUserID},
		{"nothing", "", "", "", ErrNoUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveUserID(tt.configured, tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveUserID = %q, want %q", got, tt.want)
			}
		})
	}
}
