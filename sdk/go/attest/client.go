// Package attest is a Go client for the attestation daemon REST API.
package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the attestation REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
}

// Attestation is the pipeline output for one record.
type Attestation struct {
	Kind         string         `json:"kind"`
	Encoding     string         `json:"encoding"`
	Record       map[string]any `json:"record"`
	PublicValues string         `json:"public_values"`
	Job          *Job           `json:"job,omitempty"`
}

// Bundle holds the collateral, liquidation and loan-to-value records computed
// from one collateral input.
type Bundle struct {
	Attestations []Attestation `json:"attestations"`
}

// ProofResult is the artifact of a completed proving job.
type ProofResult struct {
	System          string         `json:"system"`
	VKeyHash        string         `json:"vkey_hash"`
	Proof           string         `json:"proof"`
	PublicValues    string         `json:"public_values"`
	Record          map[string]any `json:"record,omitempty"`
	Verified        bool           `json:"verified"`
	OnChainVerified *bool          `json:"onchain_verified,omitempty"`
	FixturePath     string         `json:"fixture_path,omitempty"`
	DurationMillis  int64          `json:"duration_ms"`
}

// Job is a proving job as reported by the server.
type Job struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Program      string          `json:"program"`
	Encoding     string          `json:"encoding"`
	PublicValues string          `json:"public_values"`
	Request      json.RawMessage `json:"request,omitempty"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	MaxRetries   int             `json:"max_retries"`
	LastError    string          `json:"last_error,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	Result       *ProofResult    `json:"result,omitempty"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`
}

// Terminal reports whether the job will not change anymore.
func (j Job) Terminal() bool {
	return j.Status == "succeeded" || j.Status == "failed"
}

// JobStats aggregates job counts per status.
type JobStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// JobFilter narrows job listings.
type JobFilter struct {
	Statuses []string
	Kinds    []string
	Limit    int
	Offset   int
	Query    string
}

// AttestOptions controls execute versus prove mode.
type AttestOptions struct {
	Prove          bool
	IdempotencyKey string
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Field      string            `json:"field,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Code != "" {
		return fmt.Sprintf("attest api error (%d): %s - %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("attest api error (%d): %s", e.StatusCode, msg)
}

// NewClient instantiates a client. When httpClient is nil, a default client
// with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAPIKey makes every request carry the key as a bearer token. An empty key
// disables the header.
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// Attest runs the attestation pipeline. request must marshal to the server's
// request shape: {"kind": ..., "<payload>": {...}}.
func (c *Client) Attest(ctx context.Context, request any, opts AttestOptions) (Attestation, error) {
	var out Attestation
	if err := c.post(ctx, "/api/v1/attestations", proveQuery(opts), request, opts.IdempotencyKey, &out); err != nil {
		return Attestation{}, err
	}
	return out, nil
}

// AttestCollateralBundle computes all three collateral records in one call.
func (c *Client) AttestCollateralBundle(ctx context.Context, collateral any, opts AttestOptions) (Bundle, error) {
	var out Bundle
	if err := c.post(ctx, "/api/v1/attestations/collateral-bundle", proveQuery(opts), collateral, opts.IdempotencyKey, &out); err != nil {
		return Bundle{}, err
	}
	return out, nil
}

// GetJob fetches a job by identifier.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var job Job
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// ListJobs returns jobs matching the filter.
func (c *Client) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.get(ctx, "/api/v1/jobs", filter.values(), &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// JobStats returns aggregated job counts.
func (c *Client) JobStats(ctx context.Context, filter JobFilter) (JobStats, error) {
	var stats JobStats
	if err := c.get(ctx, "/api/v1/jobs/stats", filter.values(), &stats); err != nil {
		return JobStats{}, err
	}
	return stats, nil
}

// WaitForJob polls until the job reaches a terminal status or ctx ends.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration) (Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return Job{}, err
		}
		if job.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f JobFilter) values() url.Values {
	values := url.Values{}
	for _, status := range f.Statuses {
		values.Add("status", status)
	}
	for _, kind := range f.Kinds {
		values.Add("kind", kind)
	}
	if f.Limit > 0 {
		values.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		values.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Query != "" {
		values.Set("q", f.Query)
	}
	return values
}

func proveQuery(opts AttestOptions) url.Values {
	if !opts.Prove {
		return nil
	}
	return url.Values{"prove": []string{"true"}}
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, payload any, idempotencyKey string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, query, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint), RawQuery: query.Encode()}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: &apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
