// Package fetch retrieves job postings over HTTP and reduces them to main
// body text. It knows the quirks of the common applicant tracking systems and
// can fall back to headless rendering for pages that build their content in
// JavaScript.
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
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single HTTP fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultBrowserTimeout bounds a headless render, which is much slower
	// than a plain GET.
	DefaultBrowserTimeout = 60 * time.Second

	// DefaultUserAgent identifies us to job boards.
	DefaultUserAgent = "Mozilla/5.0 (compatible; ResumeTailor/1.0)"
)

// Result is a fetched job posting reduced to text.
type Result struct {
	URL        string
	HTML       string
	Text       string
	Platform   Platform
	StatusCode int
	Rendered   bool // true when the HTML came from a headless browser
}

// Error represents a failure to retrieve or process a posting URL.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures posting retrieval.
type Options struct {
	Timeout        time.Duration
	BrowserTimeout time.Duration
	UserAgent      string
	Headers        map[string]string
	UseBrowser     bool // allow headless fallback for thin pages
	Logger         *zap.Logger
}

// DefaultOptions returns the defaults used when Options is nil.
func DefaultOptions() *Options {
	return &Options{
		Timeout:        DefaultTimeout,
		BrowserTimeout: DefaultBrowserTimeout,
		UserAgent:      DefaultUserAgent,
		UseBrowser:     true,
	}
}

// Posting fetches a job posting URL and extracts its main text using
// selectors for the detected platform. When the extracted text is too thin to
// be a real posting and browser fallback is enabled, the page is re-rendered
// headlessly and extraction runs again on the rendered HTML.
func Posting(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	platform := DetectPlatform(urlStr)
	logger.Debug("fetching job posting",
		zap.String("url", urlStr),
		zap.String("platform", string(platform)))

	result, err := get(ctx, urlStr, opts)
	if err != nil {
		return result, err
	}
	result.Platform = platform

	text, err := extractMainText(result.HTML, platform.ContentSelectors(), platform.NoiseSelectors())
	if err != nil {
		return result, &Error{URL: urlStr, Message: "content extraction failed", Cause: err}
	}
	result.Text = text

	if opts.UseBrowser && tooThin(text) {
		logger.Debug("extracted text too thin, rendering with browser",
			zap.Int("chars", len(text)))

		html, renderErr := renderBrowser(ctx, urlStr, opts.BrowserTimeout)
		if renderErr != nil {
			// The plain fetch already produced something; keep it.
			logger.Warn("browser rendering failed, keeping HTTP content",
				zap.String("url", urlStr),
				zap.Error(renderErr))
			return result, nil
		}

		rendered, extractErr := extractMainText(html, platform.ContentSelectors(), platform.NoiseSelectors())
		if extractErr == nil && len(rendered) > len(text) {
			result.HTML = html
			result.Text = rendered
			result.Rendered = true
		}
	}

	logger.Debug("fetched job posting",
		zap.String("url", urlStr),
		zap.Int("chars", len(result.Text)),
		zap.Bool("rendered", result.Rendered))
	return result, nil
}

// get performs the plain HTTP retrieval.
func get(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:        urlStr,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		return result, &Error{URL: urlStr, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return result, nil
}

// extractMainText strips noise elements, finds the main content node by
// trying contentSelectors in order, and returns its condensed text. When no
// selector matches it falls back to the whole body.
func extractMainText(html string, contentSelectors, noiseSelectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, .ad, .ads, .sidebar, .cookie-banner, .popup").Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	var main *goquery.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			main = sel.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}

	return condenseWhitespace(main.Text()), nil
}

// condenseWhitespace trims each line and drops empty ones.
func condenseWhitespace(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
