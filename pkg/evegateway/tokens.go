package evegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoTokens is returned when the auth service has no usable bearer tokens.
var ErrNoTokens = errors.New("no usable bearer tokens available")

const tokenCacheTTL = 5 * time.Minute

// TokenSource obtains bearer tokens from the adjacent auth service and hands
// them out round-robin. Tokens that fail with 401/403 are quarantined until
// the next refresh.
type TokenSource struct {
	authURL    string
	userAgent  string
	httpClient *http.Client

	mu        sync.Mutex
	tokens    []string
	failed    map[string]bool
	next      int
	fetchedAt time.Time
}

// NewTokenSource creates a token source against the auth collaborator.
func NewTokenSource(authURL, userAgent string, httpClient *http.Client) *TokenSource {
	return &TokenSource{
		authURL:    authURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		failed:     make(map[string]bool),
	}
}

type tokenListResponse struct {
	Tokens []string `json:"tokens"`
}

// Next returns the next usable token, refreshing the cached list when stale.
func (s *TokenSource) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.fetchedAt) > tokenCacheTTL || len(s.usableLocked()) == 0 {
		if err := s.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	usable := s.usableLocked()
	if len(usable) == 0 {
		return "", ErrNoTokens
	}

	token := usable[s.next%len(usable)]
	s.next++
	return token, nil
}

// MarkFailed quarantines a token after a 401/403 and forces a refresh on the
// next Next call.
func (s *TokenSource) MarkFailed(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[token] = true
	s.fetchedAt = time.Time{}
}

func (s *TokenSource) usableLocked() []string {
	usable := make([]string, 0, len(s.tokens))
	for _, t := range s.tokens {
		if !s.failed[t] && !tokenExpired(t) {
			usable = append(usable, t)
		}
	}
	return usable
}

func (s *TokenSource) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.authURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch tokens: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}

	var list tokenListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}

	s.tokens = list.Tokens
	s.failed = make(map[string]bool)
	s.fetchedAt = time.Now()

	slog.Debug("Refreshed bearer token list", "count", len(s.tokens))
	return nil
}

// tokenExpired checks the JWT exp claim without verifying the signature; the
// auth service owns validation, we only avoid sending tokens we know are dead.
func tokenExpired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Opaque tokens are passed through as-is.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
