package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"foundry/internal/config"
)

const maxBodyBytes = 10 << 20 // 10 MiB cap on fetched pages

// Result is the extracted text of a fetched page.
type Result struct {
	URL   string
	Title string
	Text  string
}

// Fetcher retrieves web pages and extracts their readable text content.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New constructs a fetcher from configuration.
func New(cfg *config.Config) *Fetcher {
	timeout := time.Duration(cfg.Ingestor.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.Ingestor.UserAgent,
	}
}

// NewWithClient constructs a fetcher around an existing HTTP client.
func NewWithClient(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Fetch retrieves the page at rawURL and extracts its main text. Article
// extraction is attempted first; pages without an identifiable article body
// fall back to the stripped text of the whole document.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("new request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	title, text := extractText(string(body), parsedURL)
	text = normalizeWhitespace(text)
	if text == "" {
		return Result{}, fmt.Errorf("no extractable text at %s", rawURL)
	}

	return Result{URL: rawURL, Title: title, Text: text}, nil
}

// extractText runs readability extraction over the page, falling back to the
// visible text of the whole document when no article is found.
func extractText(html string, pageURL *url.URL) (string, string) {
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.Title), article.TextContent
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	doc.Find("script,style,noscript").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return title, doc.Find("body").Text()
}

// normalizeWhitespace collapses runs of whitespace into single spaces while
// preserving paragraph breaks as newlines.
func normalizeWhitespace(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}
