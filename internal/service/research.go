package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/websearch"
)

const (
	researchBudgetChars   = 4000
	probeSufficientRatio  = 0.8
	searchSufficientRatio = 0.3

	maxExtractedCompetitors  = 3
	maxResearchedCompetitors = 2
	maxHelpCenterURLs        = 2

	discoverySearchResults = 3
	helpURLMinLength       = 10
)

// discoveryQueryTemplates: one is picked at random per call. The
// nondeterminism is intentional, results are not cached across calls.
var discoveryQueryTemplates = []string{
	"who are the main competitors of %s",
	"top alternatives to %s for customers",
	"companies similar to %s in the same market",
	"%s vs competitors comparison",
}

// blockedResearchDomains filters low-signal hosts out of competitor
// searches and out of URL validation.
var blockedResearchDomains = []string{
	"facebook.com", "twitter.com", "x.com", "linkedin.com",
	"instagram.com", "youtube.com", "tiktok.com", "pinterest.com",
	"reddit.com", "quora.com", "wikipedia.org",
	"trustpilot.com", "complaintsboard.com", "bbb.org",
	"sitejabber.com", "glassdoor.com",
}

// helpPlatformDomains restricts the generic fallback search to hosts
// that actually serve help-center content.
var helpPlatformDomains = []string{
	"zendesk.com", "intercom.help", "freshdesk.com",
	"helpscout.net", "zohodesk.com", "helpjuice.com",
}

// fallbackHelpCenterURLs is the last resort when every search tier
// fails: well-known public help centers with generic support content.
var fallbackHelpCenterURLs = []string{
	"https://support.zendesk.com/hc/en-us",
	"https://www.intercom.com/help/en",
}

var junkPathSegments = []string{
	"/error", "/login", "/404", "/cart", "/search", "/sitemap", "cloudflare",
}

var helpPathSegments = []string{
	"/help", "/support", "/faq", "/customer-service", "/care", "/contact",
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// WebSearcher is the slice of the search client the research service
// consumes.
type WebSearcher interface {
	Search(ctx context.Context, query string, opts websearch.Options) ([]websearch.Result, error)
}

// CompletionClient performs non-streaming chat completions.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OrganizationLookup resolves an organization's display name.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
}

// HelpCenterScraper turns discovered URLs into cleaned documents.
type HelpCenterScraper interface {
	ProcessHelpCenterURLs(ctx context.Context, urls []string) []domain.ScrapedDocument
}

// ResearchArchiver persists raw research documents for audit. Archival
// is best-effort and never affects the research result.
type ResearchArchiver interface {
	ArchiveResearch(ctx context.Context, topic string, docs []domain.ScrapedDocument) error
}

// ResearchResult is the outcome of competitor discovery: validated
// help-center URLs plus the competitor names behind them.
type ResearchResult struct {
	URLs        []string
	Competitors []string
}

// ResearchService discovers competitor help centers and accumulates
// competitor insight for article generation.
type ResearchService struct {
	search     WebSearcher
	llm        CompletionClient
	orgs       OrganizationLookup
	scraper    HelpCenterScraper
	archiver   ResearchArchiver
	httpClient *http.Client
	randInt    func(n int) int
}

// NewResearchService creates a ResearchService. archiver may be nil.
func NewResearchService(search WebSearcher, llm CompletionClient, orgs OrganizationLookup, scraper HelpCenterScraper, archiver ResearchArchiver) *ResearchService {
	return &ResearchService{
		search:     search,
		llm:        llm,
		orgs:       orgs,
		scraper:    scraper,
		archiver:   archiver,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		randInt:    rand.Intn,
	}
}

// SearchHelpCenterArticles discovers up to 2 competitor help-center
// URLs for a topic. Every external call is independently guarded, so a
// failure at any tier degrades to the next instead of aborting; total
// failure yields the static fallback URLs with no competitors.
func (s *ResearchService) SearchHelpCenterArticles(ctx context.Context, topic, orgID string) ResearchResult {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil || org.Name == "" {
		log.Printf("research: no organization name for %s, using generic fallback", orgID)
		return s.genericFallback(ctx, topic)
	}

	competitors := s.discoverCompetitors(ctx, org.Name)
	if len(competitors) == 0 {
		return s.genericFallback(ctx, topic)
	}

	if len(competitors) > maxResearchedCompetitors {
		competitors = competitors[:maxResearchedCompetitors]
	}

	// join all competitor searches, then collect the valid URLs
	found := make([]string, len(competitors))
	done := make(chan struct{})
	for i, competitor := range competitors {
		go func() {
			found[i] = s.findCompetitorHelpURL(ctx, competitor, topic)
			done <- struct{}{}
		}()
	}
	for range competitors {
		<-done
	}

	var urls []string
	for _, u := range found {
		if u != "" && len(urls) < maxHelpCenterURLs {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		fallback := s.genericFallback(ctx, topic)
		fallback.Competitors = competitors
		return fallback
	}

	return ResearchResult{URLs: urls, Competitors: competitors}
}

// discoverCompetitors searches for the org's competitive landscape and
// asks the LLM to extract brand names from the snippets.
func (s *ResearchService) discoverCompetitors(ctx context.Context, orgName string) []string {
	query := fmt.Sprintf(discoveryQueryTemplates[s.randInt(len(discoveryQueryTemplates))], orgName)

	results, err := s.search.Search(ctx, query, websearch.Options{
		Depth:      websearch.DepthAdvanced,
		MaxResults: discoverySearchResults,
		EndDate:    time.Now(),
	})
	if err != nil {
		log.Printf("research: competitor discovery search failed: %v", err)
		return nil
	}

	var snippets strings.Builder
	for _, r := range results {
		snippets.WriteString(r.Content)
		snippets.WriteString("\n")
	}
	if snippets.Len() == 0 {
		return nil
	}

	prompt := fmt.Sprintf(
		"Based on the following search results, list up to %d direct competitors of %s.\n"+
			"Respond with ONLY a JSON array of lowercase brand names, nothing else.\n"+
			"Example: [\"acme\", \"globex\"]\n\nSearch results:\n%s",
		maxExtractedCompetitors, orgName, snippets.String(),
	)

	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("research: competitor extraction failed: %v", err)
		return nil
	}

	return parseCompetitorNames(raw)
}

// parseCompetitorNames parses a strict JSON array of brand names,
// tolerating code-fence wrapping. Any parse failure yields an empty
// slice, never an error.
func parseCompetitorNames(raw string) []string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var names []string
	if err := json.Unmarshal([]byte(cleaned), &names); err != nil {
		log.Printf("research: malformed competitor list %q, continuing with none", raw)
		return nil
	}

	var out []string
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		out = append(out, name)
		if len(out) >= maxExtractedCompetitors {
			break
		}
	}
	return out
}

// findCompetitorHelpURL searches for one competitor's help center,
// first with a customer-service query, then with a topic-only retry.
func (s *ResearchService) findCompetitorHelpURL(ctx context.Context, competitor, topic string) string {
	queries := []string{
		fmt.Sprintf("%s official site customer service %s", competitor, topic),
		fmt.Sprintf("%s %s", competitor, topic),
	}

	for _, query := range queries {
		results, err := s.search.Search(ctx, query, websearch.Options{
			Depth:          websearch.DepthBasic,
			MaxResults:     discoverySearchResults,
			ExcludeDomains: blockedResearchDomains,
		})
		if err != nil {
			log.Printf("research: help URL search for %q failed: %v", competitor, err)
			continue
		}
		for _, r := range results {
			if isValidHelpCenterURL(r.URL, competitor) {
				return r.URL
			}
		}
	}
	return ""
}

// isValidHelpCenterURL accepts only URLs on the competitor's own
// domain whose path indicates help content.
func isValidHelpCenterURL(rawURL, competitor string) bool {
	if len(rawURL) < helpURLMinLength || !strings.HasPrefix(rawURL, "http") {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	for _, blocked := range blockedResearchDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return false
		}
	}

	lowerURL := strings.ToLower(rawURL)
	for _, junk := range junkPathSegments {
		if strings.Contains(lowerURL, junk) {
			return false
		}
	}

	path := strings.ToLower(parsed.Path)
	hasHelpSegment := false
	for _, segment := range helpPathSegments {
		if strings.Contains(path, segment) {
			hasHelpSegment = true
			break
		}
	}
	if !hasHelpSegment {
		return false
	}

	domainPattern, err := regexp.Compile(
		`^https?://([\w-]+\.)?` + regexp.QuoteMeta(strings.ToLower(competitor)) + `\.[a-z]+`,
	)
	if err != nil {
		return false
	}
	return domainPattern.MatchString(lowerURL)
}

// genericFallback searches known help-center platforms for the topic.
// If even that fails, the static fallback URLs are returned.
func (s *ResearchService) genericFallback(ctx context.Context, topic string) ResearchResult {
	results, err := s.search.Search(ctx, fmt.Sprintf("%s customer service help article", topic), websearch.Options{
		Depth:          websearch.DepthBasic,
		MaxResults:     discoverySearchResults,
		IncludeDomains: helpPlatformDomains,
	})
	if err != nil {
		log.Printf("research: generic fallback search failed: %v", err)
		return ResearchResult{URLs: fallbackHelpCenterURLs}
	}

	var urls []string
	for _, r := range results {
		if len(urls) >= maxHelpCenterURLs {
			break
		}
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	if len(urls) == 0 {
		urls = fallbackHelpCenterURLs
	}
	return ResearchResult{URLs: urls}
}

// LearnFromHelpCenters accumulates competitor help-center insight for
// a topic, cheapest source first. Tier 1 probes competitor help-center
// APIs directly; below 80% of the budget, tier 2 runs knowledge-base
// searches; below 30%, tier 3 scrapes the discovered URLs. Each tier
// stops issuing calls once its content is sufficient.
func (s *ResearchService) LearnFromHelpCenters(ctx context.Context, research ResearchResult, topic string) string {
	var content strings.Builder

	for _, competitor := range research.Competitors {
		if content.Len() >= int(probeSufficientRatio*researchBudgetChars) {
			break
		}
		content.WriteString(s.probeHelpCenterAPI(ctx, competitor, topic))
	}

	if content.Len() < int(probeSufficientRatio*researchBudgetChars) {
		for _, competitor := range research.Competitors {
			if content.Len() >= int(probeSufficientRatio*researchBudgetChars) {
				break
			}
			content.WriteString(s.knowledgeBaseSearch(ctx, competitor, topic))
		}
	}

	if content.Len() < int(searchSufficientRatio*researchBudgetChars) {
		docs := s.scraper.ProcessHelpCenterURLs(ctx, research.URLs)
		for _, doc := range docs {
			if content.Len() >= researchBudgetChars {
				break
			}
			content.WriteString(doc.Content)
			content.WriteString("\n")
		}
		if s.archiver != nil && len(docs) > 0 {
			if err := s.archiver.ArchiveResearch(ctx, topic, docs); err != nil {
				log.Printf("research: failed to archive scraped documents: %v", err)
			}
		}
	}

	text := content.String()
	if len(text) > researchBudgetChars {
		text = text[:researchBudgetChars]
	}
	return text
}

type helpCenterSearchResponse struct {
	Results []struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"results"`
}

// probeHelpCenterAPI hits the competitor's Zendesk-style help-center
// search API directly. Any failure yields empty content.
func (s *ResearchService) probeHelpCenterAPI(ctx context.Context, competitor, topic string) string {
	endpoint := fmt.Sprintf(
		"https://%s.zendesk.com/api/v2/help_center/articles/search.json?query=%s",
		url.PathEscape(competitor), url.QueryEscape(topic),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("research: help-center probe for %q failed: %v", competitor, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}

	var parsed helpCenterSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	var sb strings.Builder
	for _, article := range parsed.Results {
		sb.WriteString(article.Title)
		sb.WriteString("\n")
		sb.WriteString(htmlTagPattern.ReplaceAllString(article.Body, " "))
		sb.WriteString("\n")
		if sb.Len() >= researchBudgetChars {
			break
		}
	}
	return sb.String()
}

// knowledgeBaseSearch pulls snippets from a web search over the
// competitor's knowledge base.
func (s *ResearchService) knowledgeBaseSearch(ctx context.Context, competitor, topic string) string {
	results, err := s.search.Search(ctx, fmt.Sprintf("%s knowledge base %s", competitor, topic), websearch.Options{
		Depth:      websearch.DepthBasic,
		MaxResults: discoverySearchResults,
	})
	if err != nil {
		log.Printf("research: knowledge-base search for %q failed: %v", competitor, err)
		return ""
	}

	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
