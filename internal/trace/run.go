package trace

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Run statuses reported to the tracing backend.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Run is one trace span. Implementations always expose a valid UUID,
// so callers never special-case a missing id.
type Run interface {
	ID() string
	// End closes the run with outputs, or records runErr when non-nil.
	End(ctx context.Context, outputs map[string]any, runErr error)
}

// httpRun is a Run backed by the tracing service.
type httpRun struct {
	id     string
	client *Client
}

func (r *httpRun) ID() string {
	return r.id
}

func (r *httpRun) End(ctx context.Context, outputs map[string]any, runErr error) {
	patch := map[string]any{
		"status":   StatusCompleted,
		"end_time": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if runErr != nil {
		patch["status"] = StatusError
		patch["error"] = runErr.Error()
	}
	if outputs != nil {
		patch["outputs"] = outputs
	}

	if err := r.client.UpdateRun(ctx, r.id, patch); err != nil {
		log.Printf("trace: failed to end run %s: %v", r.id, err)
	}
}

// localRun is the degraded-tracer fallback: a fabricated id and no-op
// completion, so the primary operation proceeds unaffected.
type localRun struct {
	id string
}

func newLocalRun() *localRun {
	return &localRun{id: uuid.NewString()}
}

func (r *localRun) ID() string {
	return r.id
}

func (r *localRun) End(ctx context.Context, outputs map[string]any, runErr error) {}
