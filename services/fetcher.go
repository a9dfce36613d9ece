package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"truthlens-api/models"

	"github.com/go-shiori/go-readability"
)

const (
	maxPageBytes    = 2 << 20
	maxArticleRunes = 5000
	fetchUserAgent  = "TruthLensBot/1.0 (+fact-checking)"
)

var ErrUnsupportedURL = errors.New("unsupported url")

// PageFetcher turns a URL into readable article text.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// ReadabilityFetcher downloads a page and extracts its main article.
type ReadabilityFetcher struct {
	client *http.Client
}

func NewReadabilityFetcher(timeout time.Duration) *ReadabilityFetcher {
	return &ReadabilityFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *ReadabilityFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	title := strings.TrimSpace(article.Title)
	if title != "" && !strings.HasPrefix(text, title) {
		text = strings.TrimSpace(title + ". " + text)
	}
	return models.Truncate(text, maxArticleRunes), nil
}
