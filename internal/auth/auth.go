package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultExchangeURL is the fixed token-exchange endpoint. An API key is
// traded here for a short-lived access token usable against the release
// registry.
const DefaultExchangeURL = "https://prod.api.lekko.dev/internal/cli/token"

var (
	defaultClient     *retryablehttp.Client
	defaultClientInit sync.Once
)

// DefaultClient returns the shared HTTP client. Retries are disabled:
// the surrounding runner owns retry policy, any failure aborts the run.
// The underlying transport picks up proxy settings from the environment.
func DefaultClient() *retryablehttp.Client {
	defaultClientInit.Do(func() {
		defaultClient = retryablehttp.NewClient()
		defaultClient.Logger = nil
		defaultClient.RetryMax = 0
		defaultClient.HTTPClient.Timeout = time.Minute
	})
	return defaultClient
}

// TokenExchanger resolves the credential used for all authenticated
// requests of a run.
type TokenExchanger struct {
	endpoint string
	client   *retryablehttp.Client
}

func NewTokenExchanger() *TokenExchanger {
	return NewTokenExchangerWithEndpoint(DefaultExchangeURL, DefaultClient())
}

func NewTokenExchangerWithEndpoint(endpoint string, client *retryablehttp.Client) *TokenExchanger {
	return &TokenExchanger{endpoint: endpoint, client: client}
}

type exchangeResponse struct {
	Token string `json:"token"`
}

// ResolveToken picks the credential for this run. A non-empty API key is
// exchanged once for an access token; otherwise fallbackToken is returned
// verbatim, even when empty, deferring failure to the first authenticated
// request.
func (e *TokenExchanger) ResolveToken(ctx context.Context, apiKey, fallbackToken string) (string, error) {
	if apiKey == "" {
		return fallbackToken, nil
	}
	return e.exchange(ctx, apiKey)
}

func (e *TokenExchanger) exchange(ctx context.Context, apiKey string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: %s", resp.Status)
	}
	var er exchangeResponse
	if dErr := json.NewDecoder(resp.Body).Decode(&er); dErr != nil {
		return "", fmt.Errorf("failed to decode token exchange response: %w", dErr)
	}
	if er.Token == "" {
		return "", fmt.Errorf("token exchange returned an empty token")
	}
	return er.Token, nil
}
