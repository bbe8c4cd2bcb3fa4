// Package backend implements domain.Backend against the remote query service
// over JSON/HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/retry"
	"nathanbeddoewebdev/sirius/internal/services/auth"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 64 << 20
)

// Compile-time checks that Client satisfies the backend capabilities.
var (
	_ domain.Backend       = (*Client)(nil)
	_ domain.MetricCatalog = (*Client)(nil)
)

// DecodeAll is safe for concurrent use, so one decoder serves every client.
var zstdDecoder, _ = zstd.NewReader(nil)

// Client talks to the query service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	retry   retry.Config
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithRetry sets the retry schedule for catalog calls. Sample and log fetches
// are retried by the scheduler instead.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		retry:   retry.DefaultConfig(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromStore creates a Client whose token is read from the keychain. A
// missing token is not an error; local services accept anonymous requests.
func NewFromStore(baseURL string, store auth.Store, opts ...Option) (*Client, error) {
	token, err := store.GetToken(auth.TokenKey)
	switch {
	case err == nil:
		opts = append([]Option{WithToken(token)}, opts...)
	case errors.Is(err, auth.ErrTokenNotFound):
	default:
		return nil, fmt.Errorf("failed to read query service token: %w", err)
	}
	return New(baseURL, opts...), nil
}

// BaseURL returns the service address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchSamples implements domain.Backend.
func (c *Client) FetchSamples(ctx context.Context, metric domain.MetricID, w timewindow.Window) (domain.SampleBatch, error) {
	req := SamplesRequest{
		ProcessID:    metric.ProcessID,
		Metric:       metric.Name,
		Begin:        w.Start,
		End:          w.End,
		ResolutionMS: w.Resolution.Milliseconds(),
	}
	var resp SamplesResponse
	if err := c.post(ctx, "samples", PathSamples, req, &resp); err != nil {
		return domain.SampleBatch{}, err
	}

	batch := domain.SampleBatch{Points: resp.Points}
	if resp.Covered.Begin.Before(resp.Covered.End) {
		batch.Covered = timewindow.Window{Start: resp.Covered.Begin, End: resp.Covered.End, Resolution: w.Resolution}
	}
	return batch, nil
}

// FetchLogPage implements domain.Backend.
func (c *Client) FetchLogPage(ctx context.Context, processID string, after *domain.Cursor, limit int) (domain.LogPage, error) {
	if limit <= 0 || limit > MaxLogPageSize {
		limit = MaxLogPageSize
	}
	var page domain.LogPage
	err := c.post(ctx, "log_page", PathLogPage, LogPageRequest{ProcessID: processID, After: after, Limit: limit}, &page)
	return page, err
}

// ListProcesses implements domain.Backend.
func (c *Client) ListProcesses(ctx context.Context) ([]domain.ProcessSummary, error) {
	var resp ProcessesResponse
	err := retry.Do(ctx, c.retry, retry.IsRetryable, func() error {
		return c.post(ctx, "processes", PathProcesses, ProcessesRequest{Limit: DefaultProcessLimit}, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Processes, nil
}

// ListMetrics implements domain.MetricCatalog.
func (c *Client) ListMetrics(ctx context.Context, processID string) ([]domain.MetricInfo, error) {
	var resp MetricsResponse
	err := retry.Do(ctx, c.retry, retry.IsRetryable, func() error {
		return c.post(ctx, "metrics", PathMetrics, MetricsRequest{ProcessID: processID}, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// --- HTTP helpers ---

// post sends body as JSON to path and decodes the answer into out. Transport
// failures and overloaded or failing servers become *domain.NetworkError;
// anything the server rejected or answered unreadably becomes
// *domain.BackendError.
func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", EncodingZstd)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), EncodingZstd) {
		raw, err = zstdDecoder.DecodeAll(raw, nil)
		if err != nil {
			return &domain.BackendError{Op: op, Status: resp.StatusCode, Message: "corrupt compressed body", Err: err}
		}
	}

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("took", time.Since(start)).
		Msg("query service request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.BackendError{Op: op, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// statusError maps a non-2xx answer onto the domain error taxonomy.
func statusError(op string, status int, body []byte) error {
	msg := http.StatusText(status)
	var apiErr ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("status %d: %s", status, msg)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &domain.BackendError{Op: op, Status: status, Message: msg, Err: domain.ErrUnauthorized}
	case status == http.StatusNotFound:
		return &domain.BackendError{Op: op, Status: status, Message: msg, Err: domain.ErrNotFound}
	default:
		return &domain.BackendError{Op: op, Status: status, Message: msg}
	}
}
