// Package client talks to the cleancharcoal password endpoints over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"cleancharcoal/internal/models"
)

const (
	ForgotPath = "/api/password/forgot/"
	ResetPath  = "/api/password/reset/"

	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// ErrUnavailable wraps transport failures and responses that cannot be decoded.
var ErrUnavailable = errors.New("password api unavailable")

type Client struct {
	baseURL    *url.URL
	http       *http.Client
	log        zerolog.Logger
	csrfCookie string
	csrfHeader string
	primePath  string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithCSRF sets the cookie the token is read from and the header it is sent in.
func WithCSRF(cookie, header string) Option {
	return func(c *Client) {
		c.csrfCookie = cookie
		c.csrfHeader = header
	}
}

// WithPrimePath sets the page fetched to obtain a CSRF cookie. Empty disables priming.
func WithPrimePath(path string) Option {
	return func(c *Client) { c.primePath = path }
}

// New returns a client for the server at baseURL with its own cookie jar.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("client: cookie jar: %w", err)
	}
	c := &Client{
		baseURL:    u,
		http:       &http.Client{Timeout: defaultTimeout, Jar: jar},
		log:        zerolog.Nop(),
		csrfCookie: "csrftoken",
		csrfHeader: "X-CSRFToken",
		primePath:  "/forgot-password/",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RequestCode asks the server to email a reset code to email.
func (c *Client) RequestCode(ctx context.Context, email string) error {
	return c.postJSON(ctx, ForgotPath, models.ForgotPasswordRequest{Email: email})
}

// ResetPassword submits the code together with the new password.
func (c *Client) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return c.postJSON(ctx, ResetPath, req)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// csrfToken returns the CSRF cookie currently held in the jar.
func (c *Client) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.baseURL) {
		if ck.Name == c.csrfCookie {
			return ck.Value
		}
	}
	return ""
}

// ensureCSRF primes the jar once when it holds no token. A failed prime is
// only logged; the server decides whether the request is acceptable.
func (c *Client) ensureCSRF(ctx context.Context) string {
	if tok := c.csrfToken(); tok != "" || c.primePath == "" {
		return tok
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.primePath), nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("build csrf prime request")
		return ""
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", c.primePath).Msg("csrf prime failed")
		return ""
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()

	tok := c.csrfToken()
	c.log.Debug().Int("status", resp.StatusCode).Bool("token", tok != "").Msg("csrf primed")
	return tok
}

// postJSON sends payload and classifies the outcome: nil on 2xx,
// *models.APIError on a structured rejection, ErrUnavailable otherwise.
func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	// Django checks the referer on HTTPS.
	req.Header.Set("Referer", c.endpoint(c.primePath))
	if tok := c.ensureCSRF(ctx); tok != "" {
		req.Header.Set(c.csrfHeader, tok)
	}

	log := c.log.With().Str("path", path).Str("request_id", requestID).Logger()
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("request failed")
		return fmt.Errorf("%w: post %s: %w", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, err)
	}
	log.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("response")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var ok models.MessageResponse
		if err := json.Unmarshal(body, &ok); err != nil {
			return fmt.Errorf("%w: decode %s: %w", ErrUnavailable, path, err)
		}
		return nil
	}

	var rej models.ErrorResponse
	if err := json.Unmarshal(body, &rej); err != nil {
		log.Error().Int("status", resp.StatusCode).Msg("undecodable error response")
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}
	log.Warn().Int("status", resp.StatusCode).Str("message", rej.Text()).Msg("request rejected")
	return &models.APIError{StatusCode: resp.StatusCode, Message: rej.Text()}
}
