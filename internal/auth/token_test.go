package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestFileTokenSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	src := NewFileTokenSource(path)

	if _, err := src.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}

	if err := src.Save("tok-123"); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := src.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("token: %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file permissions: %o", perm)
	}
}

func TestFileTokenSource_EmptyFileIsNoToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewFileTokenSource(path).Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestCheckLifetime(t *testing.T) {
	tests := []struct {
		name         string
		exp          time.Time
		noExp        bool
		minRemaining time.Duration
		wantExpired  bool
	}{
		{"plenty of time", time.Now().Add(4 * time.Hour), false, time.Hour, false},
		{"already expired", time.Now().Add(-time.Minute), false, time.Hour, true},
		{"expires mid exam", time.Now().Add(10 * time.Minute), false, time.Hour, true},
		{"no exp claim passes", time.Time{}, true, time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := jwt.MapClaims{"sub": "student-1"}
			if !tt.noExp {
				claims["exp"] = tt.exp.Unix()
			}
			err := CheckLifetime(signedToken(t, claims), tt.minRemaining)
			if tt.wantExpired && !errors.Is(err, ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
			if !tt.wantExpired && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckLifetime_Garbage(t *testing.T) {
	if err := CheckLifetime("not-a-jwt", time.Hour); err == nil {
		t.Error("expected an error for a malformed token")
	}
}

func TestSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "student-42"})
	if got := Subject(token); got != "student-42" {
		t.Errorf("subject: %q", got)
	}

	anonymous := signedToken(t, jwt.MapClaims{"role": "student"})
	if got := Subject(anonymous); got != "default" {
		t.Errorf("expected fallback subject, got %q", got)
	}

	if got := Subject("not-a-jwt"); got != "default" {
		t.Errorf("expected fallback subject for garbage, got %q", got)
	}
}
