package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/trace"
	"golang.org/x/sync/errgroup"
)

const generationTimeout = 60 * time.Second

// quoteStripper removes quote characters the model tends to wrap
// generated copy in.
var quoteStripper = strings.NewReplacer(`"`, "", "“", "", "”", "", "‘", "", "’", "")

// StreamingChatClient performs chat completions, plain and streaming.
type StreamingChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	StreamComplete(ctx context.Context, prompt string, onToken func(string)) (string, error)
}

// CompetitorResearcher discovers competitor help centers and
// accumulates insight text for generation.
type CompetitorResearcher interface {
	SearchHelpCenterArticles(ctx context.Context, topic, orgID string) ResearchResult
	LearnFromHelpCenters(ctx context.Context, research ResearchResult, topic string) string
}

// RunTracker records trace runs for pipeline operations.
type RunTracker interface {
	StartRun(ctx context.Context, name, runType string, inputs map[string]any, parentID string) trace.Run
	UpdateRunSafely(ctx context.Context, runID string, patch map[string]any)
}

// GenerateArticleInput is the request for enhanced article generation.
type GenerateArticleInput struct {
	Title        string
	Description  string
	OrgID        string
	CollectionID string
}

// GenerationService orchestrates competitor-researched article
// generation with full run tracing.
type GenerationService struct {
	llm      StreamingChatClient
	research CompetitorResearcher
	orgs     OrganizationLookup
	tracker  RunTracker
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(llm StreamingChatClient, research CompetitorResearcher, orgs OrganizationLookup, tracker RunTracker) *GenerationService {
	return &GenerationService{
		llm:      llm,
		research: research,
		orgs:     orgs,
		tracker:  tracker,
	}
}

// GenerateEnhancedArticle produces help-article copy for a topic,
// researched against competitor help centers. Any failure is recorded
// on the parent run before being returned.
func (s *GenerationService) GenerateEnhancedArticle(ctx context.Context, in GenerateArticleInput) (string, error) {
	if in.Title == "" || in.OrgID == "" {
		return "", domain.ErrMissingRequiredField
	}

	parent := s.tracker.StartRun(ctx, "generate-enhanced-article", "chain", map[string]any{
		"title":           in.Title,
		"description":     in.Description,
		"organization_id": in.OrgID,
		"collection_id":   in.CollectionID,
	}, "")

	content, err := s.generateWithResearch(ctx, in, parent)
	if err != nil {
		parent.End(ctx, nil, err)
		return "", err
	}

	parent.End(ctx, map[string]any{"content": content}, nil)
	return content, nil
}

func (s *GenerationService) generateWithResearch(ctx context.Context, in GenerateArticleInput, parent trace.Run) (string, error) {
	// research run creation and org-name lookup are independent
	var (
		researchRun trace.Run
		orgName     string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		researchRun = s.tracker.StartRun(gctx, "competitor-research", "tool", map[string]any{
			"topic": in.Title,
		}, parent.ID())
		return nil
	})
	g.Go(func() error {
		org, err := s.orgs.GetByID(gctx, in.OrgID)
		if err != nil {
			return fmt.Errorf("failed to resolve organization: %w", err)
		}
		orgName = org.Name
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	discovered := s.research.SearchHelpCenterArticles(ctx, in.Title, in.OrgID)
	insight := s.research.LearnFromHelpCenters(ctx, discovered, in.Title)
	researchRun.End(ctx, map[string]any{
		"competitors":   discovered.Competitors,
		"urls":          discovered.URLs,
		"insight_chars": len(insight),
	}, nil)

	contentRun := s.tracker.StartRun(ctx, "generate-content", "llm", map[string]any{
		"topic": in.Title,
	}, parent.ID())

	prompt := buildArticlePrompt(orgName, in.Title, in.Description, insight)
	raw, err := WithTimeout(ctx, generationTimeout, "generation", func(ctx context.Context) (string, error) {
		return s.llm.StreamComplete(ctx, prompt, nil)
	})
	if err != nil {
		contentRun.End(ctx, nil, err)
		return "", fmt.Errorf("failed to generate article content: %w", err)
	}

	content := strings.TrimSpace(quoteStripper.Replace(raw))
	if content == "" {
		contentRun.End(ctx, nil, domain.ErrEmptyContent)
		return "", domain.ErrEmptyContent
	}

	contentRun.End(ctx, map[string]any{"content": content}, nil)
	return content, nil
}

func buildArticlePrompt(orgName, title, description, insight string) string {
	var sb strings.Builder
	sb.WriteString("You are writing a help-center article for ")
	if orgName != "" {
		sb.WriteString(orgName)
	} else {
		sb.WriteString("our company")
	}
	sb.WriteString(".\n")
	sb.WriteString("Write in our brand voice: first person plural, warm and direct.\n")
	sb.WriteString("Keep it to 1-2 short paragraphs. No quotes, no bullet points, no headings.\n\n")
	sb.WriteString("Topic: ")
	sb.WriteString(title)
	sb.WriteString("\n")
	if description != "" {
		sb.WriteString("Details: ")
		sb.WriteString(description)
		sb.WriteString("\n")
	}
	if insight != "" {
		sb.WriteString("\nFor context, here is how comparable help centers cover this topic. ")
		sb.WriteString("Use it for completeness only, never mention other companies:\n")
		sb.WriteString(insight)
		sb.WriteString("\n")
	}
	return sb.String()
}
