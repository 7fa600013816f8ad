package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 0
	client.HTTPClient.Timeout = 10 * time.Second
	return client
}

func TestResolveTokenFallback(t *testing.T) {
	reqCount := 0
	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		reqCount++
	}))
	defer ts.Close()
	e := NewTokenExchangerWithEndpoint(ts.URL, newTestClient())

	token, err := e.ResolveToken(context.Background(), "", "fallback-token")
	require.NoError(t, err)
	require.Equal(t, "fallback-token", token)

	// an empty fallback passes through unchanged
	token, err = e.ResolveToken(context.Background(), "", "")
	require.NoError(t, err)
	require.Empty(t, token)

	require.Equal(t, 0, reqCount)
}

func TestResolveTokenExchange(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "my-api-key", r.Header.Get("apikey"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, "{}", string(body))
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"token": "short-lived-token"}))
	}))
	defer ts.Close()
	e := NewTokenExchangerWithEndpoint(ts.URL, newTestClient())

	token, err := e.ResolveToken(context.Background(), "my-api-key", "fallback-token")
	require.NoError(t, err)
	require.Equal(t, "short-lived-token", token)
}

func TestResolveTokenExchangeEmptyToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"token": ""}))
	}))
	defer ts.Close()
	e := NewTokenExchangerWithEndpoint(ts.URL, newTestClient())

	_, err := e.ResolveToken(context.Background(), "my-api-key", "fallback-token")
	require.ErrorContains(t, err, "empty token")
}

func TestResolveTokenExchangeHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()
	e := NewTokenExchangerWithEndpoint(ts.URL, newTestClient())

	_, err := e.ResolveToken(context.Background(), "my-api-key", "fallback-token")
	require.ErrorContains(t, err, "token exchange failed")
	require.ErrorContains(t, err, "401")
}
