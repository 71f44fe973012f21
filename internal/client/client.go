// Package client talks to the learning tracker REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pbaille/learnlog/internal/domain"
	"go.uber.org/zap"
)

const defaultMessage = "An error occurred"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidOTP   = errors.New("invalid OTP")
)

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// Is maps status classes onto the package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// TokenSource supplies the bearer token for each request
type TokenSource interface {
	Token() string
}

// Client calls the API at a base URL such as http://localhost:5000/api
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger

	// OnUnauthorized runs after any 401 response
	OnUnauthorized func()
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource attaches a bearer token to every request
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the request logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported API URL scheme: %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: defaultMessage}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		}
		if resp.StatusCode == http.StatusUnauthorized && c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// AuthResult is returned by Signup, Login and VerifyOTP. Without a token
// the server has emailed a code that VerifyOTP must confirm.
type AuthResult struct {
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
	Email   string       `json:"email"`
	Message string       `json:"message"`
}

// NeedsVerification reports whether the account still awaits its OTP
func (r *AuthResult) NeedsVerification() bool {
	return r.Token == ""
}

// Signup creates an account
func (c *Client) Signup(ctx context.Context, email, password, name string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateOTP asks the server to email a fresh verification code
func (c *Client) GenerateOTP(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/auth/generate-otp", map[string]string{"userId": userID}, nil)
}

// VerifyOTP confirms the emailed code and returns the issued token.
// A wrong code yields ErrInvalidOTP.
func (c *Client) VerifyOTP(ctx context.Context, userID, code string) (*AuthResult, error) {
	code = strings.TrimSpace(code)
	if !validOTP(code) {
		return nil, fmt.Errorf("%w: enter the 6-digit code", ErrInvalidOTP)
	}

	var out struct {
		Result bool         `json:"result"`
		Token  string       `json:"token"`
		User   *domain.User `json:"user"`
	}
	body := map[string]string{"userId": userID, "enteredOTP": code}
	if err := c.do(ctx, http.MethodPost, "/auth/verify-otp", body, &out); err != nil {
		return nil, err
	}
	if !out.Result {
		return nil, ErrInvalidOTP
	}
	return &AuthResult{Token: out.Token, User: out.User}, nil
}

func validOTP(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Logout revokes the current token
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me returns the signed-in user
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out struct {
		User *domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// ListResources returns every resource, newest first
func (c *Client) ListResources(ctx context.Context) ([]domain.Resource, error) {
	var out []domain.Resource
	if err := c.do(ctx, http.MethodGet, "/resources", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetResource returns one resource
func (c *Client) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	var out domain.Resource
	if err := c.do(ctx, http.MethodGet, "/resources/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateResource adds a resource
func (c *Client) CreateResource(ctx context.Context, in domain.ResourceInput) (*domain.Resource, error) {
	var out domain.Resource
	if err := c.do(ctx, http.MethodPost, "/resources", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateResource replaces a resource's editable fields
func (c *Client) UpdateResource(ctx context.Context, id string, in domain.ResourceInput) (*domain.Resource, error) {
	var out domain.Resource
	if err := c.do(ctx, http.MethodPut, "/resources/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteResource removes a resource
func (c *Client) DeleteResource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/resources/"+url.PathEscape(id), nil, nil)
}

// MarkComplete records completion with the minutes actually spent
func (c *Client) MarkComplete(ctx context.Context, id string, req domain.CompleteRequest) (*domain.Resource, error) {
	var out domain.Resource
	path := "/resources/" + url.PathEscape(id) + "/mark-complete"
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary returns aggregate progress
func (c *Client) Summary(ctx context.Context) (*domain.Summary, error) {
	var out domain.Summary
	if err := c.do(ctx, http.MethodGet, "/resources/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCategories returns the user's categories
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out struct {
		Categories []domain.Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// CreateCategory adds a category
func (c *Client) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	var out domain.Category
	if err := c.do(ctx, http.MethodPost, "/categories", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
