package evegateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, tokens ...string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		json.NewEncoder(w).Encode(tokenListResponse{Tokens: tokens})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "test",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenSourceRoundRobin(t *testing.T) {
	srv, calls := tokenServer(t, "token-a", "token-b")
	source := NewTokenSource(srv.URL, "go-battles test", srv.Client())

	ctx := context.Background()
	first, err := source.Next(ctx)
	require.NoError(t, err)
	second, err := source.Next(ctx)
	require.NoError(t, err)
	third, err := source.Next(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, 1, *calls, "cached list serves subsequent calls")
}

func TestTokenSourceMarkFailedForcesRefresh(t *testing.T) {
	srv, calls := tokenServer(t, "token-a")
	source := NewTokenSource(srv.URL, "go-battles test", srv.Client())

	ctx := context.Background()
	token, err := source.Next(ctx)
	require.NoError(t, err)

	source.MarkFailed(token)
	_, err = source.Next(ctx)
	require.NoError(t, err, "refresh clears the quarantine")
	assert.Equal(t, 2, *calls)
}

func TestTokenSourceDropsExpiredJWTs(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Hour))
	live := signedToken(t, time.Now().Add(time.Hour))
	srv, _ := tokenServer(t, expired, live)
	source := NewTokenSource(srv.URL, "go-battles test", srv.Client())

	for i := 0; i < 4; i++ {
		token, err := source.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, live, token, "expired token never handed out")
	}
}

func TestTokenSourceOpaqueTokensPassThrough(t *testing.T) {
	srv, _ := tokenServer(t, "not-a-jwt")
	source := NewTokenSource(srv.URL, "go-battles test", srv.Client())

	token, err := source.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "not-a-jwt", token)
}

func TestTokenSourceNoTokens(t *testing.T) {
	srv, _ := tokenServer(t)
	source := NewTokenSource(srv.URL, "go-battles test", srv.Client())

	_, err := source.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoTokens)
}

func TestErrorWindowCap(t *testing.T) {
	w := NewErrorWindow()
	for i := 0; i < errorLimitCap-1; i++ {
		w.RecordError()
	}
	assert.True(t, w.Allow())

	w.RecordError()
	assert.False(t, w.Allow(), "cap reached blocks further requests")
}

func TestErrorWindowServerAuthoritative(t *testing.T) {
	w := NewErrorWindow()
	headers := http.Header{}
	headers.Set("X-ESI-Error-Limit-Remain", "0")
	headers.Set("X-ESI-Error-Limit-Reset", "30")
	w.ObserveHeaders(headers)

	assert.False(t, w.Allow(), "server-reported zero budget blocks locally")
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Duration(0), retryAfterDuration(resp))

	resp.Header.Set("Retry-After", "12")
	assert.Equal(t, 12*time.Second, retryAfterDuration(resp))

	resp.Header.Set("Retry-After", "soon")
	assert.Equal(t, time.Duration(0), retryAfterDuration(resp))
}
