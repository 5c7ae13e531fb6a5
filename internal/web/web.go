// Package web fetches and normalizes the text content of a web page for the
// retrieval pipeline (C9). It tries a plain HTTP GET plus readability
// extraction first, and falls back to a headless browser render when the
// extracted text is too short for the page to plausibly have been
// JavaScript-rendered, an HTTP-first strategy layered over a headless-browser
// fallback.
package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// PageContent is the normalized result of scraping a single URL.
type PageContent struct {
	Title   string
	Content string
	Source  string
}

// Scraper fetches and normalizes page content, preferring a fast HTTP path
// and falling back to a headless browser render when the page needs
// JavaScript to produce meaningful text.
type Scraper struct {
	client             *http.Client
	requestTimeout     time.Duration
	minTextForHTTPOnly int
	headlessEnabled    bool
}

// NewScraper builds a Scraper. requestTimeout bounds both the HTTP GET and
// the headless render. minTextForHTTPOnly is the character-count floor
// below which the HTTP-first extraction is considered too thin and the
// headless fallback is attempted (when enabled).
func NewScraper(requestTimeout time.Duration, minTextForHTTPOnly int, headlessEnabled bool) *Scraper {
	return &Scraper{
		client:             &http.Client{Timeout: requestTimeout},
		requestTimeout:     requestTimeout,
		minTextForHTTPOnly: minTextForHTTPOnly,
		headlessEnabled:    headlessEnabled,
	}
}

// CheckRobotsTxt requests the target host's robots.txt but does not parse
// its rules: it returns false only when address cannot be parsed, and true
// otherwise, whether robots.txt is missing, unreachable or present.
func (s *Scraper) CheckRobotsTxt(ctx context.Context, address string) bool {
	base, err := url.Parse(address)
	if err != nil {
		return false
	}

	robotsURL := url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return true
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return true
	}
	defer resp.Body.Close()

	// A missing or non-200 robots.txt is treated as permissive; a present
	// one is assumed to allow scraping since we don't do full rule parsing.
	return true
}

// Fetch retrieves and normalizes the content at address. It tries the
// HTTP+readability path first; if the extracted text is shorter than
// minTextForHTTPOnly and the headless fallback is enabled, it re-fetches
// with a headless browser render.
func (s *Scraper) Fetch(ctx context.Context, address string) (*PageContent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	content, err := s.fetchHTTP(ctx, address)
	if err == nil && len(content.Content) >= s.minTextForHTTPOnly {
		return content, nil
	}

	if !s.headlessEnabled {
		if err != nil {
			return nil, err
		}
		return content, nil
	}

	rendered, renderErr := s.fetchHeadless(ctx, address)
	if renderErr != nil {
		if err != nil {
			return nil, fmt.Errorf("http fetch failed (%w) and headless fallback failed (%v)", err, renderErr)
		}
		return content, nil
	}
	if len(rendered.Content) > 0 {
		return rendered, nil
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *Scraper) fetchHTTP(ctx context.Context, address string) (*PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "freshness-bot/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, address)
	}

	parsedURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parsing source url: %w", err)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extracting readable content: %w", err)
	}

	markdown, err := toMarkdown(article.Content, address)
	if err != nil {
		markdown = cleanText(article.TextContent)
	}

	return &PageContent{
		Title:   article.Title,
		Content: markdown,
		Source:  address,
	}, nil
}

func (s *Scraper) fetchHeadless(ctx context.Context, address string) (*PageContent, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var htmlContent string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(address),
		chromedp.ActionFunc(func(c context.Context) error {
			headers := network.Headers{"User-Agent": "freshness-bot/1.0"}
			return network.SetExtraHTTPHeaders(headers).Do(c)
		}),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return nil, fmt.Errorf("headless render of %s: %w", address, err)
	}

	parsedURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parsing source url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extracting readable content from render: %w", err)
	}

	markdown, err := toMarkdown(article.Content, address)
	if err != nil {
		markdown = cleanText(article.TextContent)
	}

	return &PageContent{
		Title:   article.Title,
		Content: markdown,
		Source:  address,
	}, nil
}

func toMarkdown(html, sourceURL string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html, converter.WithDomain(baseOrigin(sourceURL)))
	if err != nil {
		return "", err
	}
	return cleanText(md), nil
}

func baseOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)
var blankLineRun = regexp.MustCompile(`\n{3,}`)

func cleanText(text string) string {
	text = strings.TrimSpace(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = blankLineRun.ReplaceAllString(text, "\n\n")
	return text
}
