package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/simlab-dev/simlab/internal/log"
)

const (
	// apiPrefix is prepended to every request path.
	apiPrefix = "api/v0/"

	defaultRequestTimeout = 30 * time.Second

	// tokenExpiryLeeway re-authenticates slightly before the token's exp
	// claim so in-flight requests don't race the expiry.
	tokenExpiryLeeway = 30 * time.Second
)

// ClientConfig is the configuration for the REST client.
type ClientConfig struct {
	// URL is the controller base URL (e.g. "https://sim.example.com").
	URL string
	// Username and Password authenticate against the controller.
	Username string
	Password string
	// Token is an optional pre-issued bearer token. When it expires the
	// client falls back to Username/Password.
	Token string
	// Insecure skips TLS certificate verification.
	Insecure bool
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Logger is the logger.
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.URL == "" {
		return fmt.Errorf("controller URL is required")
	}
	if c.Token == "" && c.Username == "" {
		return fmt.Errorf("credentials are required (token or username/password)")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultRequestTimeout}
		if c.Insecure {
			c.HTTPClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "transport.Client"})

	return nil
}

// Client is the REST implementation of API. It attaches a bearer token to
// every request, re-authenticating once on a 401 and proactively when the
// token's JWT expiry has passed. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	logger     log.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a new REST client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !strings.HasPrefix(cfg.URL, "https://") {
		cfg.Logger.Warningf("Controller URL %q does not use https", cfg.URL)
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    strings.TrimSuffix(cfg.URL, "/") + "/" + apiPrefix,
		username:   cfg.Username,
		password:   cfg.Password,
		logger:     cfg.Logger,
		token:      cfg.Token,
	}, nil
}

// BaseURL returns the controller base URL including the API prefix.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Token returns a bearer token that is valid right now, authenticating first
// if needed. Used by the event stream, which sends the token as its first
// message instead of a header.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && !tokenExpired(c.token) {
		return c.token, nil
	}
	if err := c.authenticateLocked(ctx); err != nil {
		return "", err
	}

	return c.token, nil
}

// Authenticate obtains a fresh bearer token from the controller.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

// CheckAuthentication probes the controller with the current token.
func (c *Client) CheckAuthentication(ctx context.Context) error {
	return c.Get(ctx, "authok", nil)
}

// Logout invalidates the current session server-side.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Delete(ctx, "logout")
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return err
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	if c.username == "" {
		return fmt.Errorf("token expired and no username/password to re-authenticate with")
	}

	body := map[string]string{
		"username": c.username,
		"password": c.password,
	}
	var token string
	if err := c.doRaw(ctx, http.MethodPost, "authenticate", body, &token, ""); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	c.token = token
	c.logger.Debugf("Authenticated against %s", c.baseURL)

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	c.mu.Lock()
	if c.token == "" || tokenExpired(c.token) {
		if err := c.authenticateLocked(ctx); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	token := c.token
	c.mu.Unlock()

	err := c.doRaw(ctx, method, path, body, out, token)
	if ErrorStatus(err) != http.StatusUnauthorized || c.username == "" {
		return err
	}

	// Re-authenticate once and retry.
	c.logger.Debugf("Got 401 on %s %s, re-authenticating", method, path)
	c.mu.Lock()
	c.token = ""
	if err := c.authenticateLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	token = c.token
	c.mu.Unlock()

	return c.doRaw(ctx, method, path, body, out, token)
}

func (c *Client) doRaw(ctx context.Context, method, path string, body, out interface{}, token string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response of %s %s: %w", method, path, err)
		}
	}

	return nil
}

// tokenExpired inspects the token's exp claim without verifying the
// signature; the controller is the one verifying, the client only wants to
// know whether re-authentication is due. Opaque (non-JWT) tokens are treated
// as valid and left to the server to reject.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().Add(tokenExpiryLeeway).After(exp.Time)
}
