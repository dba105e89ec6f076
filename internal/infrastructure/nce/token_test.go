package nce

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflux/simflux/internal/shared/config"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/logger"
)

func nopLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.DiscardHandler))
}

func tokenServer(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
}

func TestTokenManagerSingleFlight(t *testing.T) {
	var requests atomic.Int64
	srv := tokenServer(t, &requests)
	defer srv.Close()

	m := NewTokenManager(config.ProviderConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
	}, nopLogger())

	const goroutines = 20
	tokens := make([]string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			tok, err := m.Token(context.Background())
			assert.NoError(t, err)
			tokens[idx] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), requests.Load(), "concurrent callers must share one refresh")
	for _, tok := range tokens {
		assert.Equal(t, "tok-1", tok)
	}
}

func TestTokenManagerReusesCachedToken(t *testing.T) {
	var requests atomic.Int64
	srv := tokenServer(t, &requests)
	defer srv.Close()

	m := NewTokenManager(config.ProviderConfig{
		ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL,
	}, nopLogger())

	for i := 0; i < 5; i++ {
		tok, err := m.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, int64(1), requests.Load())
}

func TestTokenManagerInvalidateForcesRefresh(t *testing.T) {
	var requests atomic.Int64
	srv := tokenServer(t, &requests)
	defer srv.Close()

	m := NewTokenManager(config.ProviderConfig{
		ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL,
	}, nopLogger())

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	m.Invalidate()

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int64(2), requests.Load())
}

func TestTokenManagerRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer srv.Close()

	m := NewTokenManager(config.ProviderConfig{
		ClientID: "client", ClientSecret: "wrong", TokenURL: srv.URL,
	}, nopLogger())

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthError(err), "credential rejection must not look retryable")
}

func TestTokenManagerEndpointUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewTokenManager(config.ProviderConfig{
		ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL,
	}, nopLogger())

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
}
