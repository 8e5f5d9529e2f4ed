// Package trace records pipeline runs against a LangSmith-compatible
// run-logging service, degrading to locally fabricated runs when the
// backend is unreachable.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultHTTPTimeout = 10 * time.Second

// Client talks to the run-logging service.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a run-logging client.
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRunRequest struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	RunType     string         `json:"run_type"`
	ProjectName string         `json:"session_name,omitempty"`
	ParentRunID string         `json:"parent_run_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Status      string         `json:"status"`
	StartTime   string         `json:"start_time"`
}

// CreateRun registers a new run with the backend.
func (c *Client) CreateRun(ctx context.Context, req createRunRequest) error {
	return c.send(ctx, http.MethodPost, c.endpoint+"/runs", req)
}

// UpdateRun patches an existing run.
func (c *Client) UpdateRun(ctx context.Context, runID string, patch map[string]any) error {
	return c.send(ctx, http.MethodPatch, c.endpoint+"/runs/"+runID, patch)
}

func (c *Client) send(ctx context.Context, method, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode run payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("run request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("run API returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Tracker creates and updates runs, substituting local runs when the
// backend fails so tracing never aborts the primary operation.
type Tracker struct {
	client  *Client
	project string
}

// NewTracker creates a Tracker. A nil client yields local runs only.
func NewTracker(client *Client, project string) *Tracker {
	return &Tracker{client: client, project: project}
}

// StartRun opens a trace run. On any tracer failure the returned Run
// is a local fabrication with a valid id and no-op completion; both
// outcomes satisfy the same interface.
func (t *Tracker) StartRun(ctx context.Context, name, runType string, inputs map[string]any, parentID string) Run {
	if t == nil || t.client == nil {
		return newLocalRun()
	}

	runID := uuid.NewString()
	req := createRunRequest{
		ID:          runID,
		Name:        name,
		RunType:     runType,
		ProjectName: t.project,
		ParentRunID: parentID,
		Inputs:      inputs,
		Status:      StatusInProgress,
		StartTime:   time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := t.client.CreateRun(ctx, req); err != nil {
		log.Printf("trace: degraded, substituting local run for %q: %v", name, err)
		return newLocalRun()
	}

	return &httpRun{id: runID, client: t.client}
}

// UpdateRunSafely patches a run after validating its id. Malformed ids
// are skipped with a warning, never an error.
func (t *Tracker) UpdateRunSafely(ctx context.Context, runID string, patch map[string]any) {
	if t == nil || t.client == nil {
		return
	}

	if _, err := uuid.Parse(runID); err != nil {
		log.Printf("trace: skipping update for malformed run id %q", runID)
		return
	}

	if err := t.client.UpdateRun(ctx, runID, patch); err != nil {
		log.Printf("trace: failed to update run %s: %v", runID, err)
	}
}
