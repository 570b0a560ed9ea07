package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/config"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/logger"
)

// Request is a search submission, serialized to the producer's API shape.
type Request struct {
	Query               string  `json:"query"`
	ZipCode             string  `json:"zipCode"`
	Radius              int     `json:"radius"`
	Threshold           float64 `json:"threshold"`
	MaxListings         int     `json:"maxListings"`
	ExtractDescriptions bool    `json:"extractDescriptions"`
}

// ApplyDefaults fills zero-valued fields from the configured defaults.
func (r *Request) ApplyDefaults(d *config.SearchDefaults) {
	if d == nil {
		return
	}
	if r.Radius == 0 {
		r.Radius = d.Radius
	}
	if r.MaxListings == 0 {
		r.MaxListings = d.MaxListings
	}
	if r.Threshold == 0 {
		r.Threshold = d.Threshold
	}
	if d.ExtractDescs {
		r.ExtractDescriptions = true
	}
}

// Validate mirrors the producer's request validation so bad submissions
// fail here instead of mid-stream.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("search: query must not be empty")
	}
	if strings.TrimSpace(r.ZipCode) == "" {
		return fmt.Errorf("search: zipCode must not be empty")
	}
	if !config.RadiusSupported(r.Radius) {
		return fmt.Errorf("search: radius must be one of %v", config.RadiusOptions)
	}
	if r.MaxListings <= 0 {
		return fmt.Errorf("search: maxListings must be positive")
	}
	return nil
}

// ProducerClient is what the controller needs from the producer backend.
type ProducerClient interface {
	// StartStream opens the event stream for one search. The returned body
	// stays open for the run's lifetime; the caller closes it.
	StartStream(ctx context.Context, req Request) (io.ReadCloser, error)

	// NotifyCancel tells the producer to stop the current job.
	NotifyCancel(ctx context.Context) error
}

// Client talks to the producer backend over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient creates a producer client. The underlying http.Client carries
// no overall timeout: the stream is long-lived and bounded by the run
// context instead.
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log,
	}
}

// StartStream opens the producer's search stream.
func (c *Client) StartStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("search: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search: contact producer: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("search: producer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp.Body, nil
}

// NotifyCancel asks the producer to stop the current job. Best-effort:
// callers are expected to swallow the error.
func (c *Client) NotifyCancel(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search/cancel", nil)
	if err != nil {
		return fmt.Errorf("search: build cancel request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("search: cancel notify: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search: cancel notify returned %d", resp.StatusCode)
	}
	return nil
}
