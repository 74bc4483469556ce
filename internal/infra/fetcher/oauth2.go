package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// oauth2Token is one cached client-credentials grant.
type oauth2Token struct {
	accessToken string
	expiresAt   time.Time
}

// oauth2Cache holds tokens per token URL + client id, refreshed shortly
// before expiry so paginated fetches never race a mid-crawl expiration.
type oauth2Cache struct {
	mu     sync.Mutex
	tokens map[string]oauth2Token
}

func newOAuth2Cache() *oauth2Cache {
	return &oauth2Cache{tokens: make(map[string]oauth2Token)}
}

const oauth2ExpirySlack = 30 * time.Second

// Token returns a valid access token for the client-credentials grant,
// fetching a fresh one when the cache is empty or near expiry.
func (c *oauth2Cache) Token(ctx context.Context, client *http.Client, tokenURL, clientID, clientSecret, scope string) (string, error) {
	key := tokenURL + "|" + clientID
	c.mu.Lock()
	cached, ok := c.tokens[key]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt.Add(-oauth2ExpirySlack)) {
		return cached.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	if scope != "" {
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauth2: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth2: token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("oauth2: token endpoint returned %d: %s", resp.StatusCode, detail)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("oauth2: parse token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("oauth2: token endpoint returned no access_token")
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	token := oauth2Token{
		accessToken: payload.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	c.mu.Lock()
	c.tokens[key] = token
	c.mu.Unlock()
	return token.accessToken, nil
}
