package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	scrapeTimeout     = 15 * time.Second
	maxScrapedDocs    = 2
	minHelpContentLen = 50
	maxResponseBytes  = 2 << 20

	scraperUserAgent = "Mozilla/5.0 (compatible; deskpilot/1.0)"
)

// helpContentKeywords: a block must match at least one family to count
// as help content.
var helpKeywordFamilies = [][]string{
	{"help", "support", "faq", "guide", "how to", "troubleshoot", "question", "answer"},
	{"customer", "contact", "service", "assistance", "account", "billing"},
	{"return", "refund", "cancel", "order", "shipping", "exchange", "request", "submit", "update"},
}

var codeLikeTokens = []string{"function(", "=>", "{", "}", "[", "]"}

// elements whose subtrees never contain help content
var skippedElements = map[string]struct{}{
	"script": {}, "style": {}, "nav": {}, "footer": {},
	"aside": {}, "iframe": {}, "noscript": {}, "form": {},
}

// ScraperService fetches competitor help-center pages and turns them
// into chunked documents ready for prompt context.
type ScraperService struct {
	httpClient *http.Client
	chunkCfg   ChunkConfig
}

// NewScraperService creates a ScraperService with default settings.
func NewScraperService() *ScraperService {
	return NewScraperServiceWithClient(&http.Client{Timeout: scrapeTimeout})
}

// NewScraperServiceWithClient creates a ScraperService with an
// explicit HTTP client (useful for tests).
func NewScraperServiceWithClient(client *http.Client) *ScraperService {
	return &ScraperService{
		httpClient: client,
		chunkCfg:   DefaultChunkConfig(),
	}
}

// ProcessHelpCenterURLs scrapes all URLs concurrently, joins on
// completion, then trims the joined output to at most 2 content-valid
// documents. In-flight requests are not cancelled early; trimming is
// strictly post-hoc.
func (s *ScraperService) ProcessHelpCenterURLs(ctx context.Context, urls []string) []domain.ScrapedDocument {
	if len(urls) == 0 {
		return nil
	}

	results := make([][]domain.ScrapedDocument, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			results[i] = s.ScrapeAndProcessURL(gctx, url)
			return nil
		})
	}
	// scrape errors are swallowed per-URL, so Wait never fails
	_ = g.Wait()

	docs := make([]domain.ScrapedDocument, 0, maxScrapedDocs)
	for _, batch := range results {
		for _, doc := range batch {
			if len(docs) >= maxScrapedDocs {
				return docs
			}
			docs = append(docs, doc)
		}
	}
	return docs
}

// ScrapeAndProcessURL fetches one page under a 15s timeout, extracts
// help-relevant blocks, and chunks them. Any fetch error or timeout is
// logged and yields an empty list; scraping never propagates errors.
func (s *ScraperService) ScrapeAndProcessURL(ctx context.Context, url string) []domain.ScrapedDocument {
	blocks, err := WithTimeout(ctx, scrapeTimeout, "scrape", func(ctx context.Context) ([]string, error) {
		return s.fetchContentBlocks(ctx, url)
	})
	if err != nil {
		log.Printf("scraper: failed to scrape %s: %v", url, err)
		return nil
	}

	var docs []domain.ScrapedDocument
	for _, block := range blocks {
		if !isValidHelpContent(block) {
			continue
		}
		for _, chunk := range chunkText(block, s.chunkCfg) {
			docs = append(docs, domain.ScrapedDocument{
				SourceURL: url,
				Content:   chunk,
				Metadata:  map[string]string{"source": url},
			})
		}
	}
	return docs
}

// fetchContentBlocks fetches the page and extracts text from
// content-bearing regions, collapsing whitespace per block.
func (s *ScraperService) fetchContentBlocks(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var blocks []string
	walkContentRegions(doc, false, &blocks)
	return blocks, nil
}

// walkContentRegions walks the DOM collecting text from main, article,
// and help-labeled containers while skipping script/nav/footer noise.
func walkContentRegions(n *html.Node, inContent bool, blocks *[]string) {
	if n.Type == html.ElementNode {
		if _, skip := skippedElements[n.Data]; skip {
			return
		}
		if !inContent && isContentRegion(n) {
			text := collapseWhitespace(extractText(n))
			if text != "" {
				*blocks = append(*blocks, text)
			}
			inContent = true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkContentRegions(c, inContent, blocks)
	}
}

func isContentRegion(n *html.Node) bool {
	switch n.Data {
	case "main", "article":
		return true
	}
	label := strings.ToLower(nodeAttr(n, "id") + " " + nodeAttr(n, "class"))
	for _, marker := range []string{"help", "support", "article", "faq", "content"} {
		if strings.Contains(label, marker) {
			return true
		}
	}
	return false
}

func nodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode {
		if _, skip := skippedElements[n.Data]; skip {
			return ""
		}
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(extractText(c))
		sb.WriteString(" ")
	}
	return sb.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isValidHelpContent is a heuristic filter: it rejects short or
// code-looking text and accepts only text matching at least one help
// keyword family. It is not a guarantee of relevance.
func isValidHelpContent(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minHelpContentLen {
		return false
	}

	for _, token := range codeLikeTokens {
		if strings.Contains(trimmed, token) {
			return false
		}
	}

	lower := strings.ToLower(trimmed)
	for _, family := range helpKeywordFamilies {
		for _, keyword := range family {
			if strings.Contains(lower, keyword) {
				return true
			}
		}
	}
	return false
}
