// Package backend is the HTTP client for the case-analyzer API: the
// streaming analysis engine and the draft and suggestion storage.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/stream"
)

// DefaultRequestTimeout bounds the wait for response headers. Open
// analysis streams are not cut by it.
const DefaultRequestTimeout = 30 * time.Second

// Client talks to the case-analyzer API.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// New creates a client whose transport enforces timeout on the initial
// response only.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Transport: transport},
		Logger:     slog.Default(),
	}
}

// AnalyzeRequest opens an analysis stream.
type AnalyzeRequest struct {
	DraftID      int64                  `json:"draft_id"`
	Jurisdiction *core.JurisdictionInfo `json:"jurisdiction"`
	Resume       bool                   `json:"resume"`
}

// Draft is a stored case-analyzer draft.
type Draft struct {
	DraftID          int64                  `json:"draft_id"`
	Status           string                 `json:"status"`
	FileName         string                 `json:"file_name"`
	JurisdictionInfo *core.JurisdictionInfo `json:"jurisdiction_info,omitempty"`
	AnalyzerData     any                    `json:"analyzer_data,omitempty"`
	CaseCitation     string                 `json:"case_citation,omitempty"`
}

// Payload flattens the draft into the raw record shape the reconciler
// reads.
func (d Draft) Payload() map[string]any {
	out := map[string]any{
		"draft_id":  d.DraftID,
		"status":    d.Status,
		"file_name": d.FileName,
	}
	if d.AnalyzerData != nil {
		out["analyzer_data"] = d.AnalyzerData
	}
	if d.CaseCitation != "" {
		out["case_citation"] = d.CaseCitation
	}
	if d.JurisdictionInfo != nil {
		out["jurisdiction_info"] = d.JurisdictionInfo
		if d.JurisdictionInfo.PreciseJurisdiction != "" {
			out["jurisdiction"] = d.JurisdictionInfo.PreciseJurisdiction
		}
	}
	return out
}

// DraftUpdate saves analyzer state on a draft.
type DraftUpdate struct {
	JurisdictionInfo *core.JurisdictionInfo       `json:"jurisdiction_info,omitempty"`
	AnalyzerData     *core.StoredAnalyzerSnapshot `json:"analyzer_data"`
	Status           string                       `json:"status,omitempty"`
}

// Suggestion is a persisted suggestion record.
type Suggestion struct {
	ID      int64          `json:"id"`
	Payload map[string]any `json:"payload"`
}

// Submission is the final case-analyzer suggestion.
type Submission struct {
	DraftID int64
	Fields  map[string]string
	// RawData is the serialized analyzer snapshot.
	RawData string
}

// MarshalJSON flattens the backend fields next to raw_data and draft_id.
func (s Submission) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(s.Fields)+2)
	for k, v := range s.Fields {
		body[k] = v
	}
	body["raw_data"] = s.RawData
	body["draft_id"] = s.DraftID
	return json.Marshal(body)
}

// SubmitResult is returned after a suggestion is stored.
type SubmitResult struct {
	DraftID int64 `json:"draft_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Message returns the best human-readable text in the body.
func (e *APIError) Message() string {
	return stream.MessageFromBody(e.StatusCode, []byte(e.Body))
}

// StartAnalysis issues the streaming request. The caller owns the
// returned response and hands it to stream.Open.
func (c *Client) StartAnalysis(ctx context.Context, req AnalyzeRequest) (*http.Response, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "case-analyzer/analyze", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	c.logger().Debug("starting analysis", "draft_id", req.DraftID, "resume", req.Resume)
	resp, err := c.client().Do(httpReq)
	if err != nil {
		return nil, core.ErrTransport(core.CodeRequestFailed, "analysis request failed").WithCause(err)
	}
	return resp, nil
}

// GetDraft fetches a draft by id.
func (c *Client) GetDraft(ctx context.Context, id int64) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("case-analyzer/drafts/%d", id), nil, &resp)
	return resp, err
}

// SaveDraft stores analyzer state on an existing draft.
func (c *Client) SaveDraft(ctx context.Context, id int64, update DraftUpdate) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("case-analyzer/drafts/%d", id), update, nil)
}

// GetSuggestion fetches a persisted suggestion.
func (c *Client) GetSuggestion(ctx context.Context, id int64) (Suggestion, error) {
	var resp Suggestion
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("suggestions/%d", id), nil, &resp)
	if resp.ID == 0 {
		resp.ID = id
	}
	return resp, err
}

// SubmitSuggestion stores the final edited analysis.
func (c *Client) SubmitSuggestion(ctx context.Context, sub Submission) (SubmitResult, error) {
	var resp SubmitResult
	err := c.do(ctx, http.MethodPost, "suggestions/case-analyzer", sub, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	return req, nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return c.HTTPClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
