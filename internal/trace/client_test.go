package trace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_NilClientYieldsLocalRuns(t *testing.T) {
	tracker := NewTracker(nil, "")

	run := tracker.StartRun(context.Background(), "some-run", "llm", nil, "")

	require.NotNil(t, run)
	_, err := uuid.Parse(run.ID())
	assert.NoError(t, err, "local runs still carry a valid UUID")

	// completion is a no-op, must not panic
	run.End(context.Background(), map[string]any{"out": 1}, nil)
}

func TestTracker_StartRun_RegistersWithBackend(t *testing.T) {
	var created createRunRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/runs", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tracker := NewTracker(NewClient(server.URL, "secret"), "deskpilot-prod")
	run := tracker.StartRun(context.Background(), "generate-content", "llm", map[string]any{"topic": "returns"}, "parent-1")

	assert.Equal(t, run.ID(), created.ID)
	assert.Equal(t, "generate-content", created.Name)
	assert.Equal(t, "llm", created.RunType)
	assert.Equal(t, "deskpilot-prod", created.ProjectName)
	assert.Equal(t, "parent-1", created.ParentRunID)
	assert.Equal(t, StatusInProgress, created.Status)
	assert.NotEmpty(t, created.StartTime)
}

func TestTracker_StartRun_BackendFailureDegradesToLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tracker := NewTracker(NewClient(server.URL, ""), "")
	run := tracker.StartRun(context.Background(), "some-run", "llm", nil, "")

	require.NotNil(t, run)
	_, err := uuid.Parse(run.ID())
	assert.NoError(t, err)

	// local run, End must not hit the backend
	run.End(context.Background(), nil, nil)
}

func TestHTTPRun_End_PatchesRun(t *testing.T) {
	var patches []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			var patch map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			patches = append(patches, patch)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tracker := NewTracker(NewClient(server.URL, ""), "")
	run := tracker.StartRun(context.Background(), "some-run", "llm", nil, "")
	run.End(context.Background(), map[string]any{"content": "done"}, nil)

	require.Len(t, patches, 1)
	assert.Equal(t, StatusCompleted, patches[0]["status"])
	assert.NotEmpty(t, patches[0]["end_time"])

	run = tracker.StartRun(context.Background(), "failing-run", "llm", nil, "")
	run.End(context.Background(), nil, assert.AnError)

	require.Len(t, patches, 2)
	assert.Equal(t, StatusError, patches[1]["status"])
	assert.NotEmpty(t, patches[1]["error"])
}

func TestTracker_UpdateRunSafely_SkipsMalformedID(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tracker := NewTracker(NewClient(server.URL, ""), "")

	tracker.UpdateRunSafely(context.Background(), "not-a-uuid", map[string]any{"status": StatusInProgress})
	assert.EqualValues(t, 0, atomic.LoadInt64(&requests))

	tracker.UpdateRunSafely(context.Background(), uuid.NewString(), map[string]any{"status": StatusInProgress})
	assert.EqualValues(t, 1, atomic.LoadInt64(&requests))
}

func TestTracker_UpdateRunSafely_NilClientIsNoOp(t *testing.T) {
	tracker := NewTracker(nil, "")

	// must not panic
	tracker.UpdateRunSafely(context.Background(), uuid.NewString(), map[string]any{"status": StatusInProgress})
}
