package evegateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go-battles/pkg/config"
	"go-battles/pkg/database"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is the rate-limited, caching gateway to the upstream identity API.
// Category clients hang off it so call sites depend on narrow interfaces.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	group      string

	// cacheTTL, when non-zero, overrides the per-class response cache TTLs.
	cacheTTL time.Duration

	l1      CacheManager
	l2      CacheManager
	retry   RetryClient
	limiter *RateLimiter
	tokens  *TokenSource

	// Category clients
	Names     NameResolver
	Character CharacterClient
}

// NameResolver resolves identifier lists into name/affiliation records.
type NameResolver interface {
	// ResolveNames returns a record per resolvable ID; unknown IDs are omitted.
	ResolveNames(ctx context.Context, ids []int64) (map[int64]NameRef, error)
	// GetAllianceInfo returns name and ticker for an alliance, nil when unknown.
	GetAllianceInfo(ctx context.Context, allianceID int64) (*AffiliationInfo, error)
	// GetCorporationInfo returns name and ticker for a corporation, nil when unknown.
	GetCorporationInfo(ctx context.Context, corporationID int64) (*AffiliationInfo, error)
}

// CharacterClient covers the authenticated character endpoints.
type CharacterClient interface {
	// GetRecentKillmailRefs lists recent killmail references for a character.
	GetRecentKillmailRefs(ctx context.Context, characterID int64) ([]KillmailRef, error)
}

// NameRef is one resolved identifier.
type NameRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// AffiliationInfo carries the extra fields only the per-entity endpoints expose.
type AffiliationInfo struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// KillmailRef is a reference to a killmail on the upstream.
type KillmailRef struct {
	KillmailID int64  `json:"killmail_id"`
	Hash       string `json:"killmail_hash"`
}

// NewClient creates the gateway client. redis may be nil, in which case the
// shared cache tier and the distributed rate limiter degrade to process-local
// behavior.
func NewClient(redis *database.Redis) (*Client, error) {
	baseURL := config.GetEnv("ESI_BASE_URL", "https://esi.evetech.net")
	userAgent := config.GetEnv("ESI_USER_AGENT", "go-battles/1.0 contact@example.com")
	timeout := config.GetDurationEnv("ESI_TIMEOUT_MS", 30*time.Second)
	if timeout < 100*time.Millisecond || timeout > 120*time.Second {
		return nil, fmt.Errorf("ESI_TIMEOUT_MS out of range: %s", timeout)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		transport = otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Host)
			}),
		)
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	defaultQuota, err := ParseQuota(config.GetEnv("ESI_RATELIMIT_QUOTA", "150/15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ESI_RATELIMIT_QUOTA: %w", err)
	}

	errorWindow := NewErrorWindow()

	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		group:      config.GetEnv("ESI_RATELIMIT_GROUP", "esi"),
		l1:         NewMemoryCacheManager(),
		retry:      NewDefaultRetryClient(httpClient, errorWindow),
	}

	if cacheTTLSecs := config.GetIntEnv("CACHE_TTL_SECONDS", 0); cacheTTLSecs != 0 {
		if cacheTTLSecs < 1 || cacheTTLSecs > 86400 {
			return nil, fmt.Errorf("CACHE_TTL_SECONDS out of range: %d", cacheTTLSecs)
		}
		c.cacheTTL = time.Duration(cacheTTLSecs) * time.Second
	}

	if redis != nil {
		c.l2 = NewRedisCacheManager(redis)
	}
	// With no shared store the limiter keeps a process-local ledger.
	c.limiter = NewRateLimiter(redis, defaultQuota)

	if authURL := config.GetEnv("AUTH_TOKENS_URL", ""); authURL != "" {
		c.tokens = NewTokenSource(authURL, userAgent, httpClient)
	}

	c.Names = &namesClient{c}
	c.Character = &characterClient{c}
	return c, nil
}

// cacheGet checks L1 then L2; an L2 hit repopulates L1 for the remaining TTL.
func (c *Client) cacheGet(key string, ttl time.Duration) ([]byte, bool) {
	if data, hit, err := c.l1.Get(key); err == nil && hit {
		return data, true
	}
	if c.l2 == nil {
		return nil, false
	}
	data, hit, err := c.l2.Get(key)
	if err != nil || !hit {
		return nil, false
	}
	_ = c.l1.Set(key, data, ttl, nil)
	return data, true
}

func (c *Client) cacheSet(key string, data []byte, ttl time.Duration, headers http.Header) {
	_ = c.l1.Set(key, data, ttl, headers)
	if c.l2 != nil {
		_ = c.l2.Set(key, data, ttl, headers)
	}
}

// effectiveTTL applies the operator override to a class TTL.
func (c *Client) effectiveTTL(ttl time.Duration) time.Duration {
	if c.cacheTTL > 0 {
		return c.cacheTTL
	}
	return ttl
}

// get performs a cached, rate-limited GET. A 404 returns (nil, nil).
func (c *Client) get(ctx context.Context, path string, ttl time.Duration, authenticated bool) ([]byte, error) {
	ttl = c.effectiveTTL(ttl)
	cacheKey := "GET " + path
	if data, hit := c.cacheGet(cacheKey, ttl); hit {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.roundTrip(ctx, req, cacheKey, ttl, authenticated)
}

// post performs a rate-limited POST; responses are not cached at this layer
// because bulk endpoints key their cache per element.
func (c *Client) post(ctx context.Context, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(ctx, req, "", 0, false)
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, cacheKey string, ttl time.Duration, authenticated bool) ([]byte, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	var token string
	if authenticated {
		if c.tokens == nil {
			return nil, ErrNoTokens
		}
		var err error
		token, err = c.tokens.Next(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if cacheKey != "" {
		_ = c.l1.SetConditionalHeaders(req, cacheKey)
	}

	// Spend the expected success cost up front; settle with the real cost once
	// the status is known.
	var member string
	if c.limiter != nil {
		var err error
		member, err = c.limiter.Acquire(ctx, c.group, CostForStatus(http.StatusOK))
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.retry.DoWithRetry(ctx, req, 3)
	if err != nil {
		if c.limiter != nil {
			_ = c.limiter.Settle(ctx, c.group, member, 0)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if c.limiter != nil {
		_ = c.limiter.Settle(ctx, c.group, member, CostForStatus(resp.StatusCode))
		c.limiter.UpdateFromHeaders(ctx, resp.Header)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && cacheKey != "":
		_ = c.l1.RefreshExpiry(cacheKey, ttl)
		if c.l2 != nil {
			_ = c.l2.RefreshExpiry(cacheKey, ttl)
		}
		if data, found, err := c.l1.GetForNotModified(cacheKey); err == nil && found {
			return data, nil
		}
		if c.l2 != nil {
			if data, found, err := c.l2.GetForNotModified(cacheKey); err == nil && found {
				return data, nil
			}
		}
		return nil, fmt.Errorf("not-modified response with no cached body for %s", req.URL.Path)

	case resp.StatusCode == http.StatusNotFound:
		return nil, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if authenticated && c.tokens != nil {
			c.tokens.MarkFailed(token)
		}
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)

	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if cacheKey != "" {
		// A server-sent max-age overrides the class TTL.
		if maxAge := parseCacheControlMaxAge(resp.Header.Get("Cache-Control")); maxAge > 0 {
			ttl = time.Duration(maxAge) * time.Second
		}
		c.cacheSet(cacheKey, body, ttl, resp.Header)
	}

	slog.DebugContext(ctx, "Upstream request completed",
		"path", req.URL.Path, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}
