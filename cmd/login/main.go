package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/nexusedu/exam-agent/internal/auth"
	"github.com/nexusedu/exam-agent/internal/config"
	"github.com/nexusedu/exam-agent/internal/logger"
)

// loginResponse covers both the bare and enveloped token shapes.
type loginResponse struct {
	Token string `json:"token"`
	Data  struct {
		Token string `json:"token"`
	} `json:"data"`
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== NexusEdu Student Login ===")

	fmt.Print("Student ID / Email: ")
	identity, _ := reader.ReadString('\n')
	identity = strings.TrimSpace(identity)
	if identity == "" {
		fmt.Println("Error: Student ID is required")
		return
	}

	fmt.Print("Password: ")
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read password")
	}
	password := string(passBytes)
	if password == "" {
		fmt.Println("Error: Password is required")
		return
	}

	// ─── Authenticate ──────────────────────────────────────────────────
	token, err := login(cfg.BackendURL, cfg.BackendTimeout, identity, password)
	if err != nil {
		log.Fatal().Err(err).Msg("Login failed")
	}

	if err := auth.CheckLifetime(token, time.Minute); err != nil {
		log.Warn().Err(err).Msg("Backend issued a short-lived token")
	}

	// ─── Cache Token ───────────────────────────────────────────────────
	tokens := auth.NewFileTokenSource(cfg.TokenPath)
	if err := tokens.Save(token); err != nil {
		log.Fatal().Err(err).Msg("Failed to cache token")
	}

	fmt.Printf("Logged in. Token cached at %s\n", cfg.TokenPath)
}

func login(baseURL string, timeout time.Duration, identity, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"identity": identity,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: timeout}
	res, err := client.Post(
		strings.TrimRight(baseURL, "/")+"/auth/student/login",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("reach backend: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend rejected login: %s", res.Status)
	}

	var out loginResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	token := out.Token
	if token == "" {
		token = out.Data.Token
	}
	if token == "" {
		return "", fmt.Errorf("no token in response")
	}
	return token, nil
}
