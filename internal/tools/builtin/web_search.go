package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

const (
	duckDuckGoSearchURL = "https://html.duckduckgo.com/html/"
	searchTimeout       = 15 * time.Second
	maxAnswerChars      = 4000
	maxEvidenceBytes    = 64 * 1024
)

// WebSearchTool searches the web, reads the top results, and produces an
// answer with content-addressed citations. Fetched pages go through
// readability extraction and markdown conversion before use.
type WebSearchTool struct {
	client    *http.Client
	searchURL string
	citations ports.CitationStore
}

func NewWebSearchTool(citations ports.CitationStore) *WebSearchTool {
	return &WebSearchTool{
		client: &http.Client{
			Timeout: searchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		searchURL: duckDuckGoSearchURL,
		citations: citations,
	}
}

type searchHit struct {
	Title   string
	URL     string
	Snippet string
}

func (t *WebSearchTool) Run(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "query must be a non-empty string"), nil
	}
	if err := tc.Require(models.CapNetwork); err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}

	hits, err := t.search(ctx, query, tc)
	if err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, "search failed: "+err.Error()), nil
	}
	if len(hits) == 0 {
		return models.FailedResult(models.ErrorKindToolInternal, "no results for query"), nil
	}

	// read the top hit; snippets from the rest pad the answer
	var answer strings.Builder
	var citations []models.CitationRef
	content, ref, readErr := t.readPage(ctx, hits[0].URL, tc)
	if readErr == nil && content != "" {
		answer.WriteString(content)
		citations = append(citations, ref)
	}
	for _, hit := range hits {
		if hit.Snippet == "" {
			continue
		}
		if answer.Len() > 0 {
			answer.WriteString("\n\n")
		}
		answer.WriteString(hit.Snippet)
		citations = append(citations, t.storeEvidence(hit.URL, hit.Snippet))
	}

	text := answer.String()
	if len(text) > maxAnswerChars {
		text = text[:maxAnswerChars]
	}
	confidence := 0.5
	if readErr == nil {
		confidence = 0.8
	}

	return &models.ExecutionResult{
		Success: true,
		Value: map[string]any{
			"answer_text": text,
			"confidence":  confidence,
			"results":     len(hits),
		},
		Output:    text,
		Citations: citations,
	}, nil
}

// search queries the DuckDuckGo HTML endpoint and parses the result list.
func (t *WebSearchTool) search(ctx context.Context, query string, tc *ports.ToolContext) ([]searchHit, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", "us-en")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Cogito/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	tc.RecordFetch(t.searchURL, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}
	return parseSearchHits(resp.Body, 5)
}

// parseSearchHits extracts result links and snippets from DuckDuckGo HTML.
func parseSearchHits(body io.Reader, limit int) ([]searchHit, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	var hits []searchHit
	doc.Find(".result__body").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(hits) >= limit {
			return false
		}
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		href = resolveRedirect(href)
		if href == "" || strings.Contains(href, "duckduckgo.com") {
			return true
		}
		hits = append(hits, searchHit{
			Title:   strings.TrimSpace(link.Text()),
			URL:     href,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return true
	})
	return hits, nil
}

var uddgRe = regexp.MustCompile(`[?&]uddg=([^&]+)`)

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if m := uddgRe.FindStringSubmatch(href); m != nil {
		if decoded, err := url.QueryUnescape(m[1]); err == nil {
			return decoded
		}
	}
	if strings.HasPrefix(href, "/") {
		return ""
	}
	return href
}

// readPage fetches one result, extracts the main content, and converts it to
// markdown. The extracted text is stored as citation evidence.
func (t *WebSearchTool) readPage(ctx context.Context, pageURL string, tc *ports.ToolContext) (string, models.CitationRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", models.CitationRef{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Cogito/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", models.CitationRef{}, err
	}
	defer resp.Body.Close()
	tc.RecordFetch(pageURL, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return "", models.CitationRef{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, pageURL)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxEvidenceBytes*4), resp.Request.URL)
	if err != nil {
		return "", models.CitationRef{}, fmt.Errorf("content extraction: %w", err)
	}
	var htmlBuf strings.Builder
	if err := article.RenderHTML(&htmlBuf); err != nil {
		return "", models.CitationRef{}, err
	}

	md, err := htmltomarkdown.ConvertString(htmlBuf.String(), converter.WithDomain(pageURL))
	if err != nil {
		return "", models.CitationRef{}, fmt.Errorf("markdown conversion: %w", err)
	}
	md = strings.TrimSpace(md)
	if len(md) > maxEvidenceBytes {
		md = md[:maxEvidenceBytes]
	}

	// stage the extracted page in scratch; the budget there caps how much
	// a single research turn can accumulate
	sum := sha256.Sum256([]byte(pageURL))
	if _, err := tc.WriteScratch(hex.EncodeToString(sum[:8])+".md", []byte(md)); err != nil {
		return "", models.CitationRef{}, fmt.Errorf("stage page content: %w", err)
	}

	return md, t.storeEvidence(pageURL, md), nil
}

// storeEvidence content-addresses a piece of evidence and returns its ref.
func (t *WebSearchTool) storeEvidence(sourceURL, content string) models.CitationRef {
	sum := sha256.Sum256([]byte(content))
	ref := models.CitationRef{
		SourceURI:   sourceURL,
		ByteStart:   0,
		ByteEnd:     len(content),
		ContentHash: hex.EncodeToString(sum[:]),
	}
	if t.citations != nil {
		if _, err := t.citations.Put(ref, []byte(content)); err != nil {
			return ref
		}
	}
	return ref
}
