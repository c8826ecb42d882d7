// Package auth holds the student bearer token the agent uses upstream.
// The agent never validates signatures, that is the backend's job, but it
// does inspect the claims locally so a session is never started with a token
// that will not outlive the exam.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken means no token has been cached yet (run the login command).
	ErrNoToken = errors.New("no cached token")
	// ErrTokenExpired means the cached token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
)

// FileTokenSource reads and writes the bearer token at a fixed path.
// Implements backend.TokenSource.
type FileTokenSource struct {
	path string
}

func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{path: path}
}

// Token returns the cached token, or ErrNoToken if none exists.
func (s *FileTokenSource) Token() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Save writes the token with owner-only permissions.
func (s *FileTokenSource) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// CheckLifetime parses the token without verifying the signature and checks
// that it remains valid for at least minRemaining. Tokens without an exp
// claim pass.
func CheckLifetime(token string, minRemaining time.Duration) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return nil
	}

	remaining := time.Until(exp.Time)
	if remaining <= 0 {
		return ErrTokenExpired
	}
	if remaining < minRemaining {
		return fmt.Errorf("%w: only %s remaining, exam needs %s", ErrTokenExpired, remaining.Round(time.Second), minRemaining)
	}
	return nil
}

// Subject extracts the sub claim, used to scope the snapshot store per
// student. Falls back to "default" for tokens without a subject.
func Subject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "default"
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "default"
	}
	return sub
}
