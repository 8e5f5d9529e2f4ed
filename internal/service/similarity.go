package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
)

const (
	similarityThreshold = 0.5
	matchCandidateLimit = 5
	topArticleResults   = 3
	embeddingTimeout    = 5 * time.Second

	titleOverlapWeight = 0.4
	vectorWeight       = 0.6

	// Fixed domain-boost terms appended to every query before embedding
	domainBoostTerms = "customer service help support"
)

// RankStrategy selects how matched articles are scored.
type RankStrategy string

const (
	// RankStrategyBlend blends title-term overlap with vector
	// similarity. This is the primary strategy.
	RankStrategyBlend RankStrategy = "blend"
	// RankStrategyEmbedding re-scores candidates with embedding-space
	// cosine similarity for title and content separately. Implemented
	// but not wired into the primary flow by default.
	RankStrategyEmbedding RankStrategy = "embedding"
)

// ArticleMatch is one nearest-neighbor hit, aggregated per article.
type ArticleMatch struct {
	ArticleID  string
	Similarity float64
}

// RankedArticle pairs an article with its final relevance score.
type RankedArticle struct {
	Article          *domain.Article
	Relevance        float64
	VectorSimilarity float64
}

// ArticleMatcher defines the vector-store lookup for similar articles
type ArticleMatcher interface {
	MatchArticles(ctx context.Context, embedding []float32, threshold float64, limit int, orgID string) ([]ArticleMatch, error)
}

// SimilarityArticleRepository loads full article rows for matched ids
type SimilarityArticleRepository interface {
	GetByIDs(ctx context.Context, ids []string, orgID string) ([]*domain.Article, error)
}

// SimilarityService finds and ranks articles relevant to a query.
type SimilarityService struct {
	embedding   EmbeddingClient
	matcher     ArticleMatcher
	articleRepo SimilarityArticleRepository
	strategy    RankStrategy
}

// NewSimilarityService creates a SimilarityService using the blend
// ranking strategy.
func NewSimilarityService(embedding EmbeddingClient, matcher ArticleMatcher, articleRepo SimilarityArticleRepository) *SimilarityService {
	return NewSimilarityServiceWithStrategy(embedding, matcher, articleRepo, RankStrategyBlend)
}

// NewSimilarityServiceWithStrategy creates a SimilarityService with an
// explicit ranking strategy.
func NewSimilarityServiceWithStrategy(embedding EmbeddingClient, matcher ArticleMatcher, articleRepo SimilarityArticleRepository, strategy RankStrategy) *SimilarityService {
	if strategy != RankStrategyEmbedding {
		strategy = RankStrategyBlend
	}
	return &SimilarityService{
		embedding:   embedding,
		matcher:     matcher,
		articleRepo: articleRepo,
		strategy:    strategy,
	}
}

// FindSimilarArticles embeds the query, retrieves nearest article
// vectors, and returns the top 3 candidates ranked by relevance.
// An empty match set yields an empty slice, not an error; any store or
// provider failure aborts the whole call.
func (s *SimilarityService) FindSimilarArticles(ctx context.Context, query, orgID string) ([]*RankedArticle, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return nil, domain.ErrEmptyQuery
	}
	if orgID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "organization ID is required")
	}

	boosted := normalized + " " + domainBoostTerms

	queryEmbedding, err := WithTimeout(ctx, embeddingTimeout, "embedding", func(ctx context.Context) ([]float32, error) {
		return s.embedding.GenerateEmbedding(ctx, boosted)
	})
	if err != nil {
		return nil, err
	}

	matches, err := s.matcher.MatchArticles(ctx, queryEmbedding, similarityThreshold, matchCandidateLimit, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to match articles: %w", err)
	}
	if len(matches) == 0 {
		return []*RankedArticle{}, nil
	}

	ids := make([]string, 0, len(matches))
	similarityByID := make(map[string]float64, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ArticleID)
		similarityByID[m.ArticleID] = m.Similarity
	}

	articles, err := s.articleRepo.GetByIDs(ctx, ids, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matched articles: %w", err)
	}

	candidates := make([]*RankedArticle, 0, len(articles))
	for _, a := range articles {
		if strings.TrimSpace(a.Content) == "" {
			continue
		}
		candidates = append(candidates, &RankedArticle{
			Article:          a,
			VectorSimilarity: similarityByID[a.ID],
		})
	}

	switch s.strategy {
	case RankStrategyEmbedding:
		if err := s.rerankByEmbedding(ctx, queryEmbedding, candidates); err != nil {
			return nil, err
		}
	default:
		scoreByBlend(normalized, candidates)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Relevance > candidates[j].Relevance
	})
	if len(candidates) > topArticleResults {
		candidates = candidates[:topArticleResults]
	}
	return candidates, nil
}

// scoreByBlend blends title-term overlap with vector similarity.
// Articles without a title fall back to bare vector similarity.
func scoreByBlend(query string, candidates []*RankedArticle) {
	queryTerms := strings.Fields(query)
	for _, c := range candidates {
		title := strings.TrimSpace(c.Article.Title)
		if title == "" {
			c.Relevance = c.VectorSimilarity
			continue
		}
		overlap := titleOverlap(queryTerms, title)
		c.Relevance = titleOverlapWeight*overlap + vectorWeight*c.VectorSimilarity
	}
}

// titleOverlap is |queryTerms ∩ titleTerms| / |queryTerms| over
// lowercase whitespace-split tokens.
func titleOverlap(queryTerms []string, title string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	titleTerms := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(title)) {
		titleTerms[t] = struct{}{}
	}

	shared := 0
	seen := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := titleTerms[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(seen))
}

// rerankByEmbedding re-scores candidates with cosine similarity
// against fresh title and content embeddings (0.4 title, 0.6 content).
func (s *SimilarityService) rerankByEmbedding(ctx context.Context, queryEmbedding []float32, candidates []*RankedArticle) error {
	for _, c := range candidates {
		titleEmbedding, err := s.embedding.GenerateEmbedding(ctx, c.Article.Title)
		if err != nil {
			return fmt.Errorf("failed to embed title: %w", err)
		}
		contentEmbedding, err := s.embedding.GenerateEmbedding(ctx, c.Article.Content)
		if err != nil {
			return fmt.Errorf("failed to embed content: %w", err)
		}

		titleSim := cosineSimilarity(queryEmbedding, titleEmbedding)
		contentSim := cosineSimilarity(queryEmbedding, contentEmbedding)
		c.Relevance = titleOverlapWeight*titleSim + vectorWeight*contentSim
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
