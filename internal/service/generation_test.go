package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStreamingChat struct {
	mock.Mock
}

func (m *MockStreamingChat) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockStreamingChat) StreamComplete(ctx context.Context, prompt string, onToken func(string)) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockCompetitorResearcher struct {
	mock.Mock
}

func (m *MockCompetitorResearcher) SearchHelpCenterArticles(ctx context.Context, topic, orgID string) ResearchResult {
	args := m.Called(ctx, topic, orgID)
	return args.Get(0).(ResearchResult)
}

func (m *MockCompetitorResearcher) LearnFromHelpCenters(ctx context.Context, research ResearchResult, topic string) string {
	args := m.Called(ctx, research, topic)
	return args.String(0)
}

// recordedRun captures End calls for assertions.
type recordedRun struct {
	id      string
	name    string
	mu      sync.Mutex
	ended   bool
	outputs map[string]any
	err     error
}

func (r *recordedRun) ID() string { return r.id }

func (r *recordedRun) End(ctx context.Context, outputs map[string]any, runErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = true
	r.outputs = outputs
	r.err = runErr
}

// recordingTracker is an in-memory RunTracker for tests.
type recordingTracker struct {
	mu      sync.Mutex
	runs    []*recordedRun
	patches map[string][]map[string]any
}

func newRecordingTracker() *recordingTracker {
	return &recordingTracker{patches: make(map[string][]map[string]any)}
}

func (t *recordingTracker) StartRun(ctx context.Context, name, runType string, inputs map[string]any, parentID string) trace.Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	run := &recordedRun{id: fmt.Sprintf("run-%d", len(t.runs)+1), name: name}
	t.runs = append(t.runs, run)
	return run
}

func (t *recordingTracker) UpdateRunSafely(ctx context.Context, runID string, patch map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.patches[runID] = append(t.patches[runID], patch)
}

func (t *recordingTracker) runNamed(name string) *recordedRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, run := range t.runs {
		if run.name == name {
			return run
		}
	}
	return nil
}

func TestGenerationService_GenerateEnhancedArticle_MissingTitle(t *testing.T) {
	tracker := newRecordingTracker()
	svc := NewGenerationService(new(MockStreamingChat), new(MockCompetitorResearcher), new(MockOrgLookup), tracker)

	_, err := svc.GenerateEnhancedArticle(context.Background(), GenerateArticleInput{OrgID: "org-123"})

	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	assert.Empty(t, tracker.runs)
}

func TestGenerationService_GenerateEnhancedArticle_Success(t *testing.T) {
	ctx := context.Background()
	llm := new(MockStreamingChat)
	researcher := new(MockCompetitorResearcher)
	orgs := new(MockOrgLookup)
	tracker := newRecordingTracker()

	orgs.On("GetByID", mock.Anything, "org-123").Return(&domain.Organization{ID: "org-123", Name: "Acme"}, nil)

	discovered := ResearchResult{
		Competitors: []string{"globex"},
		URLs:        []string{"https://globex.com/help/returns"},
	}
	researcher.On("SearchHelpCenterArticles", mock.Anything, "How to return an item", "org-123").Return(discovered)
	researcher.On("LearnFromHelpCenters", mock.Anything, discovered, "How to return an item").
		Return("Competitors accept returns within 30 days.")

	var capturedPrompt string
	llm.On("StreamComplete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		capturedPrompt = prompt
		return true
	})).Return(`"We accept returns within 30 days."`, nil)

	svc := NewGenerationService(llm, researcher, orgs, tracker)
	content, err := svc.GenerateEnhancedArticle(ctx, GenerateArticleInput{
		Title: "How to return an item",
		OrgID: "org-123",
	})

	require.NoError(t, err)
	assert.Equal(t, "We accept returns within 30 days.", content, "quotes should be stripped")

	assert.Contains(t, capturedPrompt, "Acme")
	assert.Contains(t, capturedPrompt, "Competitors accept returns within 30 days.")
	assert.Contains(t, capturedPrompt, "never mention other companies")

	parent := tracker.runNamed("generate-enhanced-article")
	require.NotNil(t, parent)
	assert.True(t, parent.ended)
	assert.NoError(t, parent.err)

	researchRun := tracker.runNamed("competitor-research")
	require.NotNil(t, researchRun)
	assert.True(t, researchRun.ended)
	assert.Equal(t, []string{"globex"}, researchRun.outputs["competitors"])

	contentRun := tracker.runNamed("generate-content")
	require.NotNil(t, contentRun)
	assert.True(t, contentRun.ended)
}

func TestGenerationService_GenerateEnhancedArticle_EmptyContent(t *testing.T) {
	ctx := context.Background()
	llm := new(MockStreamingChat)
	researcher := new(MockCompetitorResearcher)
	orgs := new(MockOrgLookup)
	tracker := newRecordingTracker()

	orgs.On("GetByID", mock.Anything, "org-123").Return(&domain.Organization{ID: "org-123", Name: "Acme"}, nil)
	researcher.On("SearchHelpCenterArticles", mock.Anything, mock.Anything, mock.Anything).Return(ResearchResult{})
	researcher.On("LearnFromHelpCenters", mock.Anything, mock.Anything, mock.Anything).Return("")
	llm.On("StreamComplete", mock.Anything, mock.Anything).Return(`""`, nil)

	svc := NewGenerationService(llm, researcher, orgs, tracker)
	_, err := svc.GenerateEnhancedArticle(ctx, GenerateArticleInput{Title: "Returns", OrgID: "org-123"})

	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	parent := tracker.runNamed("generate-enhanced-article")
	require.NotNil(t, parent)
	assert.True(t, parent.ended)
	assert.Error(t, parent.err)
}

func TestGenerationService_GenerateEnhancedArticle_OrgLookupFails(t *testing.T) {
	ctx := context.Background()
	llm := new(MockStreamingChat)
	researcher := new(MockCompetitorResearcher)
	orgs := new(MockOrgLookup)
	tracker := newRecordingTracker()

	orgs.On("GetByID", mock.Anything, "org-123").Return(nil, domain.ErrOrganizationNotFound)

	svc := NewGenerationService(llm, researcher, orgs, tracker)
	_, err := svc.GenerateEnhancedArticle(ctx, GenerateArticleInput{Title: "Returns", OrgID: "org-123"})

	require.Error(t, err)
	llm.AssertNotCalled(t, "StreamComplete")

	parent := tracker.runNamed("generate-enhanced-article")
	require.NotNil(t, parent)
	assert.Error(t, parent.err)
}

func TestGenerationService_GenerateEnhancedArticle_LLMError(t *testing.T) {
	ctx := context.Background()
	llm := new(MockStreamingChat)
	researcher := new(MockCompetitorResearcher)
	orgs := new(MockOrgLookup)
	tracker := newRecordingTracker()

	orgs.On("GetByID", mock.Anything, "org-123").Return(&domain.Organization{ID: "org-123", Name: "Acme"}, nil)
	researcher.On("SearchHelpCenterArticles", mock.Anything, mock.Anything, mock.Anything).Return(ResearchResult{})
	researcher.On("LearnFromHelpCenters", mock.Anything, mock.Anything, mock.Anything).Return("")
	llm.On("StreamComplete", mock.Anything, mock.Anything).Return("", assert.AnError)

	svc := NewGenerationService(llm, researcher, orgs, tracker)
	_, err := svc.GenerateEnhancedArticle(ctx, GenerateArticleInput{Title: "Returns", OrgID: "org-123"})

	assert.Error(t, err)

	contentRun := tracker.runNamed("generate-content")
	require.NotNil(t, contentRun)
	assert.Error(t, contentRun.err)
}

func TestBuildArticlePrompt_NoInsight(t *testing.T) {
	prompt := buildArticlePrompt("", "Returns", "", "")

	assert.Contains(t, prompt, "our company")
	assert.Contains(t, prompt, "Topic: Returns")
	assert.NotContains(t, prompt, "comparable help centers")
}
