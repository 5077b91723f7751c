// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package management talks to the Azure Resource Manager REST API for account-level
// operations. Only account deletion is implemented.
package management

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenSource supplies the bearer token for management calls.
type TokenSource interface {
	LoadManagementToken() (string, error)
}

// ErrNoToken is returned when no management token is configured.
var ErrNoToken = errors.New("no management token configured; run `scrapbook account token` first")

// TokenEnv overrides the stored management token.
const TokenEnv = "SCRAPBOOK_MANAGEMENT_TOKEN"

// EnvTokens prefers TokenEnv and falls back to the wrapped source.
type EnvTokens struct {
	Fallback TokenSource
}

func (e EnvTokens) LoadManagementToken() (string, error) {
	if tok := os.Getenv(TokenEnv); tok != "" {
		return tok, nil
	}
	if e.Fallback == nil {
		return "", nil
	}
	return e.Fallback.LoadManagementToken()
}

// Client is an ARM REST client.
type Client struct {
	// baseURL is the ARM endpoint (e.g., "https://management.azure.com")
	baseURL    string
	apiVersion string
	tokens     TokenSource
	client     *http.Client
	logger     *zap.Logger

	// pollInterval is used when a long-running operation sends no Retry-After header
	pollInterval time.Duration
	// maxPolls bounds the number of status requests for one operation
	maxPolls int
}

// New creates a Client. Requests time out after 30 seconds each.
func New(baseURL, apiVersion string, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiVersion:   apiVersion,
		tokens:       tokens,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		pollInterval: 5 * time.Second,
		maxPolls:     360,
	}
}

// APIError is an error response from ARM.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("management API returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("management API returned %d: %s", e.StatusCode, e.Message)
}

// DeleteAccount deletes the database account and waits for the long-running operation
// to finish. Deleting an account that no longer exists succeeds.
func (c *Client) DeleteAccount(ctx context.Context, id ResourceID) error {
	url := fmt.Sprintf("%s%s?api-version=%s", c.baseURL, id.Path(), c.apiVersion)
	resp, err := c.do(ctx, http.MethodDelete, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	case http.StatusAccepted:
		return c.wait(ctx, resp)
	default:
		return apiError(resp)
	}
}

func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("management request", zap.String("method", method), zap.String("url", url))
	return c.client.Do(req)
}

func (c *Client) token() (string, error) {
	raw, err := c.tokens.LoadManagementToken()
	if err != nil {
		return "", fmt.Errorf("load management token: %w", err)
	}
	token := strings.TrimSpace(raw)
	if t := parseBearerToken(token); t != "" {
		token = t
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// wait follows the Azure-AsyncOperation or Location header of an accepted request.
func (c *Client) wait(ctx context.Context, accepted *http.Response) error {
	statusURL := accepted.Header.Get("Azure-AsyncOperation")
	async := statusURL != ""
	if !async {
		statusURL = accepted.Header.Get("Location")
	}
	if statusURL == "" {
		return nil
	}
	delay := c.retryAfter(accepted.Header)

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		done, next, err := c.poll(ctx, statusURL, async)
		if err != nil || done {
			return err
		}
		delay = next
	}
	return fmt.Errorf("operation did not finish after %d status checks", c.maxPolls)
}

func (c *Client) poll(ctx context.Context, statusURL string, async bool) (bool, time.Duration, error) {
	resp, err := c.do(ctx, http.MethodGet, statusURL)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return false, c.retryAfter(resp.Header), nil
	}
	if resp.StatusCode >= 300 {
		return false, 0, apiError(resp)
	}
	if !async {
		return true, 0, nil
	}

	var status struct {
		Status string `json:"status"`
		Error  struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, 0, fmt.Errorf("decode operation status: %w", err)
	}
	c.logger.Debug("operation status", zap.String("status", status.Status))
	switch strings.ToLower(status.Status) {
	case "succeeded":
		return true, 0, nil
	case "failed", "canceled", "cancelled":
		msg := status.Error.Message
		if msg == "" {
			msg = "operation " + strings.ToLower(status.Status)
		}
		return false, 0, &APIError{StatusCode: resp.StatusCode, Code: status.Error.Code, Message: msg}
	default:
		return false, c.retryAfter(resp.Header), nil
	}
}

func (c *Client) retryAfter(h http.Header) time.Duration {
	if s, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After"))); err == nil && s >= 0 {
		return time.Duration(s) * time.Second
	}
	return c.pollInterval
}

func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: body.Error.Code, Message: body.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
}

// parseBearerToken extracts token from a value like "Bearer <token>" case-insensitively.
// Returns "" when value has no bearer prefix.
func parseBearerToken(value string) string {
	v := strings.TrimSpace(value)
	if len(v) < 7 || !strings.EqualFold(v[0:6], "bearer") || (v[6] != ' ' && v[6] != '\t') {
		return ""
	}
	return strings.TrimSpace(v[6:])
}
