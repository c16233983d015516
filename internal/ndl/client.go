// Package ndl is a client for the National Diet Library minutes search API
// (kokkai.ndl.go.jp). It pulls per-utterance speech records that the ingest
// pipeline normalizes into speeches.
package ndl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/log"
)

const (
	// DefaultBaseURL is the production speech endpoint.
	DefaultBaseURL = "https://kokkai.ndl.go.jp/api/speech"

	// maxRecordsPerPage is the API's documented page-size ceiling.
	maxRecordsPerPage = 100

	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond

	cacheTTL     = 15 * time.Minute
	cacheCleanup = 30 * time.Minute
)

// Query selects which speeches to pull. Zero fields are omitted from the
// request.
type Query struct {
	Session int          // 国会回次
	House   domain.House // limits to one chamber when set
	Meeting string       // 会議名, e.g. "予算委員会"
	Any     string       // full-text keyword
	From    time.Time    // 開会日付 lower bound (inclusive)
	Until   time.Time    // 開会日付 upper bound (inclusive)
}

// Client calls the NDL speech API with paging, per-page caching, and
// retry on server errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client.
func New(logger log.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache.New(cacheTTL, cacheCleanup),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// speechResponse is the JSON envelope of the speech endpoint. On success
// nextRecordPosition carries the startRecord of the following page and is
// absent on the last one.
type speechResponse struct {
	NumberOfRecords    int            `json:"numberOfRecords"`
	NextRecordPosition *int           `json:"nextRecordPosition"`
	SpeechRecords      []speechRecord `json:"speechRecord"`
	Message            string         `json:"message"`
}

type speechRecord struct {
	SpeechID      string `json:"speechID"`
	Session       int    `json:"session"`
	NameOfHouse   string `json:"nameOfHouse"`
	NameOfMeeting string `json:"nameOfMeeting"`
	Date          string `json:"date"`
	Speaker       string `json:"speaker"`
	Speech        string `json:"speech"`
	SpeechURL     string `json:"speechURL"`
}

// Speeches fetches every page matching q and returns the records as domain
// speeches. Paging stops when the response omits nextRecordPosition.
func (c *Client) Speeches(ctx context.Context, q Query) ([]domain.Speech, error) {
	var speeches []domain.Speech

	start := 1
	for {
		page, err := c.page(ctx, q, start)
		if err != nil {
			return nil, fmt.Errorf("fetch page at record %d: %w", start, err)
		}
		if page.Message != "" {
			return nil, fmt.Errorf("api error: %s", page.Message)
		}

		for _, rec := range page.SpeechRecords {
			sp, err := rec.toSpeech()
			if err != nil {
				c.logger.Warn("skipping malformed speech record",
					"speech_id", rec.SpeechID, "error", err)
				continue
			}
			speeches = append(speeches, sp)
		}

		if page.NextRecordPosition == nil {
			break
		}
		start = *page.NextRecordPosition
	}

	c.logger.Info("fetched speeches",
		"session", q.Session, "count", len(speeches))
	return speeches, nil
}

// page fetches one page, serving repeated windows from the cache so a
// rerun over the same session does not hammer the API.
func (c *Client) page(ctx context.Context, q Query, start int) (*speechResponse, error) {
	u := c.pageURL(q, start)

	if cached, ok := c.cache.Get(u); ok {
		return cached.(*speechResponse), nil
	}

	resp, err := c.fetchWithRetry(ctx, u)
	if err != nil {
		return nil, err
	}

	c.cache.Set(u, resp, cache.DefaultExpiration)
	return resp, nil
}

func (c *Client) pageURL(q Query, start int) string {
	params := url.Values{}
	params.Set("recordPacking", "json")
	params.Set("maximumRecords", strconv.Itoa(maxRecordsPerPage))
	params.Set("startRecord", strconv.Itoa(start))
	if q.Session > 0 {
		params.Set("sessionFrom", strconv.Itoa(q.Session))
		params.Set("sessionTo", strconv.Itoa(q.Session))
	}
	if q.House != "" {
		params.Set("nameOfHouse", houseToAPI(q.House))
	}
	if q.Meeting != "" {
		params.Set("nameOfMeeting", q.Meeting)
	}
	if q.Any != "" {
		params.Set("any", q.Any)
	}
	if !q.From.IsZero() {
		params.Set("from", q.From.Format("2006-01-02"))
	}
	if !q.Until.IsZero() {
		params.Set("until", q.Until.Format("2006-01-02"))
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) fetchWithRetry(ctx context.Context, u string) (*speechResponse, error) {
	backoff := initialBackoff

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying NDL request",
				"attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		resp, retryable, err := c.fetch(ctx, u)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) fetch(ctx context.Context, u string) (*speechResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("server error: %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status: %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}

	var resp speechResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return &resp, false, nil
}

func (r speechRecord) toSpeech() (domain.Speech, error) {
	if r.SpeechID == "" {
		return domain.Speech{}, fmt.Errorf("missing speechID")
	}
	house, err := houseFromAPI(r.NameOfHouse)
	if err != nil {
		return domain.Speech{}, err
	}
	spokenAt, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return domain.Speech{}, fmt.Errorf("parse date %q: %w", r.Date, err)
	}
	return domain.Speech{
		NDLID:       r.SpeechID,
		Session:     r.Session,
		House:       house,
		Meeting:     r.NameOfMeeting,
		SpeakerName: r.Speaker,
		Body:        r.Speech,
		SpokenAt:    spokenAt,
		MinutesURL:  r.SpeechURL,
	}, nil
}

func houseToAPI(h domain.House) string {
	switch h {
	case domain.HouseRepresentatives:
		return "衆議院"
	case domain.HouseCouncillors:
		return "参議院"
	default:
		return ""
	}
}

func houseFromAPI(name string) (domain.House, error) {
	switch name {
	case "衆議院":
		return domain.HouseRepresentatives, nil
	case "参議院":
		return domain.HouseCouncillors, nil
	default:
		return "", fmt.Errorf("unknown house: %q", name)
	}
}
