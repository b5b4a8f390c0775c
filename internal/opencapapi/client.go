package opencapapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"opencap/internal/auth"
	"opencap/internal/config"
	"opencap/internal/logging"
	"opencap/internal/services"
)

const component = "opencapapi"

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the OpenCap REST API.
type Client struct {
	baseURL *url.URL
	tokens  auth.TokenProvider
	doer    HTTPDoer
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP backend.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// New constructs a client for baseURL. Paths are resolved relative to it, so a
// base ending in "/api/" keeps that prefix.
func New(baseURL string, tokens auth.TokenProvider, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "parse base url", trimmed, err)
	}
	c := &Client{
		baseURL: parsed,
		tokens:  tokens,
		doer:    &http.Client{Timeout: 60 * time.Second},
		logger:  logging.NewComponentLogger(nil, component),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client using the API section of cfg.
func NewFromConfig(cfg *config.Config, tokens auth.TokenProvider, logger *slog.Logger) (*Client, error) {
	return New(cfg.API.BaseURL, tokens,
		WithHTTPClient(&http.Client{Timeout: cfg.APITimeout()}),
		WithLogger(logger),
	)
}

// Session fetches a session and its trial list.
func (c *Client) Session(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodGet, "sessions/"+url.PathEscape(sessionID)+"/", nil, "", &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		session.ID = sessionID
	}
	return &session, nil
}

// Trial fetches a single trial including its results.
func (c *Client) Trial(ctx context.Context, trialID string) (*Trial, error) {
	var trial Trial
	if err := c.doJSON(ctx, http.MethodGet, "trials/"+url.PathEscape(trialID)+"/", nil, "", &trial); err != nil {
		return nil, err
	}
	return &trial, nil
}

// PostResult uploads a file as a multipart result attached to a trial.
func (c *Client) PostResult(ctx context.Context, upload Upload) (*Result, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "post result", upload.Tag, err)
	}
	var result Result
	if err := c.doJSON(ctx, http.MethodPost, "results/", body, contentType, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("result uploaded",
		logging.String("tag", upload.Tag),
		logging.String("file", filepath.Base(upload.Path)),
		logging.Int64("result_id", result.ID),
	)
	return &result, nil
}

// DeleteResult removes a single result record.
func (c *Client) DeleteResult(ctx context.Context, resultID int64) error {
	return c.doJSON(ctx, http.MethodDelete, "results/"+strconv.FormatInt(resultID, 10)+"/", nil, "", nil)
}

// DeleteResultsByTag removes every result with the given tag from a trial and
// reports how many were deleted.
func (c *Client) DeleteResultsByTag(ctx context.Context, trialID, tag string) (int, error) {
	trial, err := c.Trial(ctx, trialID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, result := range trial.Results {
		if result.Tag != tag {
			continue
		}
		if err := c.DeleteResult(ctx, result.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Ping verifies the API is reachable and accepts the configured token.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "sessions/", nil, "", nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	operation := method + " " + path
	ref, err := url.Parse(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, component, operation, "invalid path", err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return services.Wrap(services.ErrValidation, component, operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return services.Wrap(services.ErrRemote, component, operation, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		return services.Wrap(statusMarker(resp.StatusCode), component, operation, message, nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrRemote, component, operation, "decode response", err)
	}
	return nil
}

func statusMarker(status int) error {
	switch status {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.ErrAuth
	case http.StatusBadRequest:
		return services.ErrValidation
	default:
		return services.ErrRemote
	}
}

func encodeUpload(upload Upload) (io.Reader, string, error) {
	if strings.TrimSpace(upload.TrialID) == "" {
		return nil, "", fmt.Errorf("trial id is required")
	}
	if strings.TrimSpace(upload.Tag) == "" {
		return nil, "", fmt.Errorf("tag is required")
	}
	file, err := os.Open(upload.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", upload.Path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"trial", upload.TrialID},
		{"tag", upload.Tag},
		{"device_id", upload.DeviceID},
	}
	if upload.Meta != nil {
		meta, err := json.Marshal(upload.Meta)
		if err != nil {
			return nil, "", fmt.Errorf("encode meta: %w", err)
		}
		fields = append(fields, [2]string{"meta", string(meta)})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := writer.CreateFormFile("media", filepath.Base(upload.Path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy %s: %w", upload.Path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
