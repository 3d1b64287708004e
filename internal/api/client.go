// Package api is the HTTP client for the portfolio REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	xerrors "portfolio-console/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Authenticator supplies the bearer token and reacts to rejected credentials.
type Authenticator interface {
	AccessToken() string
	HandleUnauthorized(path string)
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *zap.Logger

	mu   sync.RWMutex
	auth Authenticator
}

type bearerKey struct{}

// WithBearer pins the bearer token for requests made with ctx, overriding the
// Authenticator. Used while a session is being established.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}

// 401/403 on these paths is a credential rejection, not a dead session.
var unauthorizedExempt = map[string]bool{
	PathLogin:            true,
	PathVerify2FA:        true,
	PathRequestEmailCode: true,
	PathRefresh:          true,
}

func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "portfolio-console"
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: ua,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// SetAuthenticator binds the token source, usually the session manager.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.mu.Lock()
	c.auth = a
	c.mu.Unlock()
}

func (c *Client) authenticator() Authenticator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// Do sends a JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	reqID := ulid.Make().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	auth := c.authenticator()
	token, pinned := bearerFromContext(ctx)
	if pinned {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if auth != nil {
		if token := auth.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w: %v", method, path, xerrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: %w: reading body: %v", method, path, xerrors.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &xerrors.APIError{
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
			Detail: extractDetail(raw),
		}
		c.logger.Debug("api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", reqID),
		)
		if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) &&
			!unauthorizedExempt[path] && !pinned && auth != nil {
			c.logger.Warn("session rejected by server, logging out", zap.String("path", path))
			auth.HandleUnauthorized(path)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, xerrors.ErrUnexpectedResponse, err)
	}
	return nil
}

// extractDetail pulls the human-readable reason out of an error body. The API
// answers with {"detail": "..."}, {"detail": [{"msg": "..."}]}, or
// {"message"/"error": "..."}.
func extractDetail(raw []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}

	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(body.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
