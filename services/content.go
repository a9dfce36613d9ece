package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"truthlens-api/logging"
)

// MinContentRunes is the shortest trimmed content accepted for analysis.
const MinContentRunes = 10

var (
	ErrContentRequired = errors.New("text or url is required")
	ErrContentTooShort = errors.New("content too short for analysis")
)

// ContentResolver decides what text an analysis request is about.
type ContentResolver struct {
	fetcher PageFetcher
	logger  logging.Logger
}

// NewContentResolver accepts a nil fetcher, in which case URLs are never fetched.
func NewContentResolver(fetcher PageFetcher, logger logging.Logger) *ContentResolver {
	return &ContentResolver{fetcher: fetcher, logger: logger}
}

// Resolve prefers submitted text. A URL-only request uses the fetched article,
// or a "Content from URL" stub when fetching fails.
func (r *ContentResolver) Resolve(ctx context.Context, text, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if text == "" && rawURL == "" {
		return "", ErrContentRequired
	}

	content := text
	if strings.TrimSpace(text) == "" && rawURL != "" {
		content = r.fromURL(ctx, rawURL)
	}

	if utf8.RuneCountInString(strings.TrimSpace(content)) < MinContentRunes {
		return "", ErrContentTooShort
	}
	return content, nil
}

func (r *ContentResolver) fromURL(ctx context.Context, rawURL string) string {
	stub := "Content from URL: " + rawURL
	if r.fetcher == nil {
		return stub
	}
	article, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		r.logger.WithError(err).WithField("url", rawURL).Warn("URL fetch failed, analysing URL stub")
		return stub
	}
	if utf8.RuneCountInString(strings.TrimSpace(article)) < MinContentRunes {
		return stub
	}
	return article
}
