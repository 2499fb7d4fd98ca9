package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/llmgate/gateway/internal/apierr"
)

// Client is an authenticated calling capability bound to one resolved URL.
// It is constructed once at startup and shared read-only across requests;
// the only mutable state is the OAuth2 token cache.
type Client struct {
	url     string
	http    *http.Client
	headers http.Header
	oauth   *tokenCache
	log     *slog.Logger
}

// tokenCache guards the cached bearer token. The mutex is held across the
// check/refresh/store critical section only, never across the model call.
type tokenCache struct {
	cfg *clientcredentials.Config

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// New resolves baseURL (baking extraParams and any parameter-placed API key
// into the query string) and returns a client for the given auth mode.
// URL or descriptor problems are configuration errors, fatal at startup.
func New(baseURL string, a Auth, extraHeaders, extraParams map[string]string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", baseURL)
	}

	query := u.Query()
	for name, value := range extraParams {
		query.Set(name, value)
	}
	headers := make(http.Header)
	for name, value := range extraHeaders {
		headers.Set(name, value)
	}

	c := &Client{
		http:    &http.Client{Timeout: 2 * time.Minute},
		headers: headers,
		log:     slog.Default(),
	}

	switch a := a.(type) {
	case APIKey:
		switch a.In {
		case InHeader:
			headers.Set(a.Name, a.Value)
		case InParams:
			query.Set(a.Name, a.Value)
		}
	case OAuth2:
		if _, err := url.Parse(a.TokenURL); err != nil {
			return nil, fmt.Errorf("invalid token url %q: %w", a.TokenURL, err)
		}
		cfg := &clientcredentials.Config{
			ClientID:     a.ClientID,
			ClientSecret: a.ClientSecret,
			TokenURL:     a.TokenURL,
		}
		if a.Scope != "" {
			cfg.Scopes = []string{a.Scope}
		}
		c.oauth = &tokenCache{cfg: cfg}
	case None, nil:
	default:
		return nil, fmt.Errorf("unsupported auth mode %T", a)
	}

	u.RawQuery = query.Encode()
	c.url = u.String()
	return c, nil
}

// URL returns the resolved URL the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Call serializes body, POSTs it to the bound URL and returns the response
// text. Non-2xx statuses surface as errors carrying the upstream status;
// network failures carry status 500.
func (c *Client) Call(ctx context.Context, body any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", apierr.Internal("marshal request: %s", err)
	}
	c.log.Debug("upstream request", "url", c.url, "bytes", len(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return "", apierr.Internal("build request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for name, values := range c.headers {
		for _, value := range values {
			req.Header.Set(name, value)
		}
	}

	if c.oauth != nil {
		token, err := c.oauth.bearer(ctx)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apierr.Internal("upstream request failed: %s", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierr.Internal("read upstream response: %s", err)
	}
	if resp.StatusCode >= 400 {
		return "", apierr.New(resp.StatusCode, "upstream returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(text)))
	}

	c.log.Debug("upstream response", "url", c.url, "status", resp.StatusCode, "bytes", len(text))
	return string(text), nil
}

// bearer returns a valid token, refreshing it under the lock when the cached
// one has expired. Concurrent callers racing past expiry each refresh in
// turn; the lock serializes them.
func (t *tokenCache) bearer(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.expiry.After(time.Now()) {
		token, err := t.cfg.Token(ctx)
		if err != nil {
			slog.Error("token refresh failed", "token_url", t.cfg.TokenURL, "error", err)
			return "", apierr.Internal("couldn't renew token")
		}
		t.token = token.AccessToken
		t.expiry = token.Expiry
	}
	return t.token, nil
}
