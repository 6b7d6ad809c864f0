package auth

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "12345678901234567890123456789012"

func TestNewServiceRejectsShortSecret(t *testing.T) {
	if _, err := NewService("short", "admin", "admin", time.Hour); err == nil {
		t.Error("expected error for short jwt secret")
	}
}

func TestLoginAndValidate(t *testing.T) {
	svc, err := NewService(testSecret, "admin", "hunter2", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Login("admin", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Error("expiry should be in the future")
	}

	claims, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Username != "admin" {
		t.Errorf("expected username admin, got %s", claims.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := NewService(testSecret, "admin", "hunter2", time.Hour)

	cases := []struct{ user, pass string }{
		{"admin", "wrong"},
		{"other", "hunter2"},
		{"", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Login(tc.user, tc.pass); err == nil {
			t.Errorf("expected rejection for %q/%q", tc.user, tc.pass)
		}
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := NewService(testSecret, "admin", "hunter2", time.Hour)
	other, _ := NewService(strings.Repeat("x", 32), "admin", "hunter2", time.Hour)

	resp, err := other.Login("admin", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateToken(resp.Token); err == nil {
		t.Error("token signed with a different secret must be rejected")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, _ := NewService(testSecret, "admin", "hunter2", -time.Minute)

	resp, err := svc.Login("admin", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateToken(resp.Token); err == nil {
		t.Error("expired token must be rejected")
	}
}
