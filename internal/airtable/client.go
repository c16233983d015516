// Package airtable is a minimal client for the Airtable REST API, used to
// mirror bill records into the editorial team's base.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/seiji-watch/diet-tracker/internal/log"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.airtable.com/v0"

	// requestsPerSecond matches Airtable's documented 5 req/s per-base limit.
	requestsPerSecond = 5

	maxRetries     = 3
	defaultBackoff = 2 * time.Second
)

// Fields is one record's column values.
type Fields map[string]any

// Record is a stored Airtable record.
type Record struct {
	ID          string    `json:"id"`
	Fields      Fields    `json:"fields"`
	CreatedTime time.Time `json:"createdTime"`
}

// Client calls one Airtable base. All calls go through a shared rate
// limiter; 429 responses are retried honoring Retry-After, other 4xx are
// terminal.
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRate overrides the requests-per-second limit. Non-positive values
// keep the default.
func WithRate(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New creates a Client for one base.
func New(apiKey, baseID string, logger log.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("airtable API key is required")
	}
	if baseID == "" {
		return nil, fmt.Errorf("airtable base ID is required")
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		baseID:     baseID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// List fetches every record of table, following offset paging until the
// response omits the offset.
func (c *Client) List(ctx context.Context, table string) ([]Record, error) {
	var records []Record

	offset := ""
	for {
		params := url.Values{}
		if offset != "" {
			params.Set("offset", offset)
		}
		u := c.tableURL(table)
		if len(params) > 0 {
			u += "?" + params.Encode()
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		records = append(records, page.Records...)

		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}

	c.logger.Debug("listed airtable records", "table", table, "count", len(records))
	return records, nil
}

// Create inserts one record and returns it with its assigned ID.
func (c *Client) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	body := map[string]any{"fields": fields}

	var rec Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return Record{}, fmt.Errorf("create in %s: %w", table, err)
	}
	return rec, nil
}

// Update patches the given fields of one record, leaving others untouched.
func (c *Client) Update(ctx context.Context, table, recordID string, fields Fields) (Record, error) {
	body := map[string]any{"fields": fields}
	u := c.tableURL(table) + "/" + url.PathEscape(recordID)

	var rec Record
	if err := c.do(ctx, http.MethodPatch, u, body, &rec); err != nil {
		return Record{}, fmt.Errorf("update %s in %s: %w", recordID, table, err)
	}
	return rec, nil
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
}

// do runs one API call with rate limiting and 429 retries, decoding the
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, u string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryAfter, err := c.doOnce(ctx, method, u, payload, out)
		if err == nil {
			return nil
		}
		if retryAfter < 0 || attempt >= maxRetries {
			return err
		}

		c.logger.Warn("airtable rate limited, backing off",
			"retry_after", retryAfter, "attempt", attempt+1)
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// doOnce performs the HTTP exchange. On a retryable failure it returns the
// wait duration alongside the error; terminal failures return -1.
func (c *Client) doOnce(ctx context.Context, method, u string, payload []byte, out any) (time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return -1, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return defaultBackoff, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("rate limited: %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return defaultBackoff, fmt.Errorf("server error: %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return -1, fmt.Errorf("request failed: %d %s", resp.StatusCode, apiErrorBody(resp.Body))
	}

	if out == nil {
		return -1, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return -1, fmt.Errorf("decode response: %w", err)
	}
	return -1, nil
}

func parseRetryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultBackoff
}

// apiErrorBody extracts Airtable's error message for diagnostics, capped so
// a misbehaving response cannot blow up logs.
func apiErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil || len(body) == 0 {
		return ""
	}

	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}
