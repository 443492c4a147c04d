// Package gateway is the typed client of the closures REST API.
//
// Every call takes the caller's token from the context, and every 401 answer
// runs the unauthorized hook before ErrUnauthorized is returned.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/metrics"
)

const maxErrorBody = 64 << 10

type tokenKey struct{}

// WithToken returns a context whose calls authenticate with token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token set by WithToken, if any.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Client talks to the closures API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	http           *http.Client
	logger         *zap.Logger
	metrics        *metrics.Metrics
	onUnauthorized func(ctx context.Context)
}

// NewClient creates a client for the API rooted at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// OnUnauthorized installs the hook run whenever the API answers 401.
// It must be set before the client is shared.
func (c *Client) OnUnauthorized(hook func(ctx context.Context)) {
	c.onUnauthorized = hook
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// requestBody is either JSON or multipart.
type requestBody struct {
	reader      io.Reader
	contentType string
}

func jsonBody(v interface{}) (*requestBody, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return &requestBody{reader: bytes.NewReader(data), contentType: "application/json"}, nil
}

// multipartBody encodes fields and one file part. The content type carries
// the writer's boundary; no JSON content type is ever set for it.
func multipartBody(fields map[string]string, fileField, fileName string, file io.Reader) (*requestBody, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &requestBody{reader: &buf, contentType: writer.FormDataContentType()}, nil
}

// doJSON sends in as JSON (when non-nil) and decodes the answer into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, endpoint, path string, in, out interface{}) error {
	body, err := jsonBody(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, endpoint, c.baseURL+path, body, out)
}

func (c *Client) do(ctx context.Context, method, endpoint, target string, body *requestBody, out interface{}) error {
	resp, err := c.send(ctx, method, endpoint, target, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// send performs the request and returns the response only for 2xx answers.
func (c *Client) send(ctx context.Context, method, endpoint, target string, body *requestBody) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = body.reader
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}

	token := TokenFromContext(ctx)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	c.logger.Debug("API request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Bool("authenticated", token != ""),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordGatewayCall(method, endpoint, 0, duration)
		c.logger.Warn("API request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	c.metrics.RecordGatewayCall(method, endpoint, resp.StatusCode, duration)

	c.logger.Debug("API response",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return nil, ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := newAPIError(resp.StatusCode, data)
		c.logger.Debug("API error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	return resp, nil
}

// resolve turns a file reference into an absolute URL on the API host.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid file reference: %w", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

func closurePath(id int64) string {
	return fmt.Sprintf("/closures/%d/", id)
}
