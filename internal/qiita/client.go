// Package qiita provides the REST client for the Qiita workflow
// orchestrator. This package centralizes authentication and transport so
// the plugin logic only deals with typed job and artifact payloads.
package qiita

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// refreshSkew is how long before token expiry a new token is requested.
const refreshSkew = 30 * time.Second

// Options configures the client transport.
type Options struct {
	Timeout  time.Duration
	Insecure bool // accept self-signed certificates (in-cluster Qiita deployments)
}

// DefaultOptions returns sensible defaults for talking to Qiita.
func DefaultOptions() *Options {
	return &Options{Timeout: DefaultTimeout}
}

// Client is an authenticated connection to one Qiita server.
//
// A Client is not safe for concurrent use; each job invocation owns its
// own client and performs its calls sequentially.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	token       string
	tokenExpiry time.Time
}

// New creates a client for the Qiita server at baseURL using oauth2
// client credentials. No network call is made until the first request.
func New(baseURL, clientID, clientSecret string, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}

	transport := http.DefaultTransport
	if opts.Insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for in-cluster self-signed certs
		}
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// authenticate fetches a fresh oauth2 token from the server.
func (c *Client) authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	endpoint := "/qiita_db/authenticate/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &Error{Endpoint: endpoint, Message: "building auth request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Endpoint: endpoint, Message: "auth request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Endpoint: endpoint,
			Message:  fmt.Sprintf("auth rejected with status %d", resp.StatusCode),
		}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &Error{Endpoint: endpoint, Message: "decoding auth response", Cause: err}
	}
	if payload.AccessToken == "" {
		return &Error{Endpoint: endpoint, Message: "auth response carried no token"}
	}

	c.token = payload.AccessToken
	c.tokenExpiry = tokenExpiry(payload.AccessToken, payload.ExpiresIn)
	return nil
}

// tokenExpiry determines when a token stops being usable. Tokens issued
// by newer Qiita deployments are JWTs; their exp claim wins over the
// advertised lifetime so clock skew on expires_in cannot strand us with
// a dead token mid-job.
func tokenExpiry(token string, expiresIn int) time.Time {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// ensureToken authenticates if the current token is missing or about to
// expire.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Until(c.tokenExpiry) > refreshSkew {
		return nil
	}
	return c.authenticate(ctx)
}

// Get performs an authenticated GET against a server endpoint and
// decodes the JSON response into out (which may be nil).
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, "", out)
}

// Post performs an authenticated POST with a JSON payload and decodes
// the JSON response into out (which may be nil).
func (c *Client) Post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Endpoint: endpoint, Message: "encoding request payload", Cause: err}
	}
	return c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out any) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return &Error{Endpoint: endpoint, Message: "building request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Endpoint: endpoint, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{
			Endpoint: endpoint,
			Message:  fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Endpoint: endpoint, Message: "decoding response", Cause: err}
	}
	return nil
}

// anyToString normalizes a decoded JSON value to its string form.
func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; artifact ids are integral.
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
