package evegateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-battles/pkg/database"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrQuotaWaitExceeded is returned when the hard per-call wait ceiling is hit
// before a token becomes available.
var ErrQuotaWaitExceeded = errors.New("rate limit wait ceiling exceeded")

// Quota is an upstream rate-limit quota expressed as N tokens per window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// ParseQuota parses the upstream "N/window" form, e.g. "150/15m" or "100/60s".
func ParseQuota(s string) (Quota, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Quota{}, fmt.Errorf("malformed quota %q", s)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || limit <= 0 {
		return Quota{}, fmt.Errorf("malformed quota limit %q", s)
	}
	window, err := parseWindow(strings.TrimSpace(parts[1]))
	if err != nil {
		return Quota{}, fmt.Errorf("malformed quota window %q: %w", s, err)
	}
	return Quota{Limit: limit, Window: window}, nil
}

func parseWindow(s string) (time.Duration, error) {
	// Bare integers are seconds per the upstream convention.
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// CostForStatus maps a response status class to its token cost. Server errors
// and 429 are free: the upstream does not bill failures it caused.
func CostForStatus(status int) int {
	switch {
	case status == http.StatusTooManyRequests:
		return 0
	case status >= 500:
		return 0
	case status >= 400:
		return 5
	case status >= 300:
		return 1
	default:
		return 2
	}
}

// acquireScript trims spends older than the window, sums the held cost and
// either appends the new spend or reports how long until the oldest blocking
// spend ages out. Members are "uuid:cost" with the spend time as score.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local held = 0
local entries = redis.call('ZRANGE', key, 0, -1)
for _, m in ipairs(entries) do
  local c = string.match(m, ':(%d+)$')
  if c then held = held + tonumber(c) end
end

if limit - held >= cost then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #oldest == 0 then
  return {1, 0}
end
return {0, tonumber(oldest[2]) + window - now}
`)

// settleScript replaces a provisional spend with its settled cost, keeping the
// original timestamp.
var settleScript = redis.NewScript(`
local key = KEYS[1]
local member = ARGV[1]
local newMember = ARGV[2]

local score = redis.call('ZSCORE', key, member)
if not score then
  return 0
end
redis.call('ZREM', key, member)
if newMember ~= '' then
  redis.call('ZADD', key, score, newMember)
end
return 1
`)

// localSpend is one in-process ledger entry, kept in spend order.
type localSpend struct {
	member string
	at     int64 // unix millis
}

// localLedger is the process-local fallback used when no shared store is
// configured. Same semantics as the Lua script: trim aged spends, sum held
// cost, append or report the wait until the oldest spend ages out.
type localLedger struct {
	mu     sync.Mutex
	spends map[string][]localSpend
}

func newLocalLedger() *localLedger {
	return &localLedger{spends: make(map[string][]localSpend)}
}

func (ll *localLedger) acquire(key string, now, window int64, limit, cost int, member string) (bool, int64) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	entries := ll.trim(key, now-window)
	held := 0
	for _, s := range entries {
		held += memberCost(s.member)
	}

	if limit-held >= cost || len(entries) == 0 {
		ll.spends[key] = append(entries, localSpend{member: member, at: now})
		return true, 0
	}
	return false, entries[0].at + window - now
}

func (ll *localLedger) settle(key, member, newMember string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	entries := ll.spends[key]
	for i := range entries {
		if entries[i].member != member {
			continue
		}
		if newMember == "" {
			ll.spends[key] = append(entries[:i], entries[i+1:]...)
		} else {
			entries[i].member = newMember
		}
		return
	}
}

func (ll *localLedger) held(key string, now, window int64) int {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	total := 0
	for _, s := range ll.trim(key, now-window) {
		total += memberCost(s.member)
	}
	return total
}

func (ll *localLedger) add(key string, now int64, member string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.spends[key] = append(ll.spends[key], localSpend{member: member, at: now})
}

// trim drops spends at or before cutoff. Caller holds the lock.
func (ll *localLedger) trim(key string, cutoff int64) []localSpend {
	entries := ll.spends[key]
	kept := entries[:0]
	for _, s := range entries {
		if s.at > cutoff {
			kept = append(kept, s)
		}
	}
	ll.spends[key] = kept
	return kept
}

// RateLimiter implements the floating-window token bucket. Each spend is a
// (timestamp, cost) ledger entry in a shared Redis sorted set, one set per
// rate-limit group, so capacity regenerates as spends age out of the window
// across every replica. Without Redis the ledger is process-local.
type RateLimiter struct {
	redis *database.Redis
	local *localLedger

	mu     sync.RWMutex
	quotas map[string]Quota

	defaultQuota Quota
	maxSleep     time.Duration // cap per wait iteration
	maxWait      time.Duration // hard ceiling per Acquire call

	// nowFn and sleepFn are replaceable in tests.
	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter over the shared ledger store. r may be
// nil, in which case the ledger is kept in process memory.
func NewRateLimiter(r *database.Redis, defaultQuota Quota) *RateLimiter {
	l := &RateLimiter{
		redis:        r,
		quotas:       make(map[string]Quota),
		defaultQuota: defaultQuota,
		maxSleep:     5 * time.Second,
		maxWait:      60 * time.Second,
		nowFn:        time.Now,
		sleepFn:      sleepCtx,
	}
	if r == nil {
		l.local = newLocalLedger()
	}
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func ledgerKey(group string) string {
	return "esi:ratelimit:" + group
}

// QuotaFor returns the quota currently known for a group.
func (l *RateLimiter) QuotaFor(group string) Quota {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if q, ok := l.quotas[group]; ok {
		return q
	}
	return l.defaultQuota
}

// ObserveQuota records the quota the server advertised for a group.
func (l *RateLimiter) ObserveQuota(group string, q Quota) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quotas[group] = q
}

// Acquire blocks until cost tokens are available in the group's window, then
// appends a provisional spend and returns its ledger member. The member must
// be settled with the response's actual cost via Settle.
func (l *RateLimiter) Acquire(ctx context.Context, group string, cost int) (string, error) {
	quota := l.QuotaFor(group)
	member := fmt.Sprintf("%s:%d", uuid.NewString(), cost)
	deadline := l.nowFn().Add(l.maxWait)

	for {
		now := l.nowFn().UnixMilli()

		var ok bool
		var waitMillis int64
		if l.local != nil {
			ok, waitMillis = l.local.acquire(ledgerKey(group),
				now, quota.Window.Milliseconds(), quota.Limit, cost, member)
		} else {
			res, err := acquireScript.Run(ctx, l.redis.Client,
				[]string{ledgerKey(group)},
				now, quota.Window.Milliseconds(), quota.Limit, cost, member,
			).Int64Slice()
			if err != nil {
				return "", fmt.Errorf("rate limit acquire failed: %w", err)
			}
			ok = len(res) == 2 && res[0] == 1
			if len(res) == 2 {
				waitMillis = res[1]
			}
		}
		if ok {
			return member, nil
		}

		wait := time.Duration(waitMillis) * time.Millisecond
		// Small jitter keeps replicas from stampeding the moment a spend ages out.
		wait += time.Duration(rand.Intn(250)) * time.Millisecond
		if wait > l.maxSleep {
			wait = l.maxSleep
		}
		if l.nowFn().Add(wait).After(deadline) {
			return "", ErrQuotaWaitExceeded
		}
		if err := l.sleepFn(ctx, wait); err != nil {
			return "", err
		}
	}
}

// Settle replaces a provisional spend with the cost implied by the response
// status. A zero cost removes the entry.
func (l *RateLimiter) Settle(ctx context.Context, group, member string, actualCost int) error {
	newMember := ""
	if actualCost > 0 {
		id, _, _ := strings.Cut(member, ":")
		newMember = fmt.Sprintf("%s:%d", id, actualCost)
	}
	if l.local != nil {
		l.local.settle(ledgerKey(group), member, newMember)
		return nil
	}
	return settleScript.Run(ctx, l.redis.Client,
		[]string{ledgerKey(group)}, member, newMember,
	).Err()
}

// Reconcile compares the server-reported remaining budget against the local
// ledger and appends a phantom spend when the server is stricter. The server
// is authoritative.
func (l *RateLimiter) Reconcile(ctx context.Context, group string, serverRemaining int) error {
	quota := l.QuotaFor(group)

	held, err := l.heldTokens(ctx, group, quota)
	if err != nil {
		return err
	}

	localRemaining := quota.Limit - held
	if serverRemaining >= localRemaining {
		return nil
	}

	phantom := localRemaining - serverRemaining
	member := fmt.Sprintf("%s:%d", uuid.NewString(), phantom)
	now := l.nowFn().UnixMilli()
	if l.local != nil {
		l.local.add(ledgerKey(group), now, member)
		return nil
	}
	pipe := l.redis.Client.Pipeline()
	pipe.ZAdd(ctx, ledgerKey(group), redis.Z{Score: float64(now), Member: member})
	pipe.PExpire(ctx, ledgerKey(group), quota.Window)
	_, err = pipe.Exec(ctx)
	return err
}

func (l *RateLimiter) heldTokens(ctx context.Context, group string, quota Quota) (int, error) {
	now := l.nowFn()
	if l.local != nil {
		return l.local.held(ledgerKey(group), now.UnixMilli(), quota.Window.Milliseconds()), nil
	}
	cutoff := now.Add(-quota.Window).UnixMilli()
	members, err := l.redis.Client.ZRangeByScore(ctx, ledgerKey(group), &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, err
	}
	return SumLedgerCosts(members), nil
}

// memberCost extracts the cost suffix of a "uuid:cost" ledger member.
func memberCost(m string) int {
	idx := strings.LastIndexByte(m, ':')
	if idx < 0 {
		return 0
	}
	cost, err := strconv.Atoi(m[idx+1:])
	if err != nil {
		return 0
	}
	return cost
}

// SumLedgerCosts totals the cost suffixes of "uuid:cost" ledger members.
func SumLedgerCosts(members []string) int {
	total := 0
	for _, m := range members {
		total += memberCost(m)
	}
	return total
}

// UpdateFromHeaders ingests the rate-limit headers present on every upstream
// response: group identifier, quota, and remaining budget.
func (l *RateLimiter) UpdateFromHeaders(ctx context.Context, headers http.Header) {
	group := headers.Get("X-RateLimit-Group")
	if group == "" {
		return
	}
	if limitStr := headers.Get("X-RateLimit-Limit"); limitStr != "" {
		if q, err := ParseQuota(limitStr); err == nil {
			l.ObserveQuota(group, q)
		}
	}
	if remainingStr := headers.Get("X-RateLimit-Remaining"); remainingStr != "" {
		if remaining, err := strconv.Atoi(remainingStr); err == nil {
			// Best effort; the next Acquire re-reads the ledger anyway.
			_ = l.Reconcile(ctx, group, remaining)
		}
	}
}
