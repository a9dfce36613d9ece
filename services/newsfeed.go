package services

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"truthlens-api/config"
	"truthlens-api/logging"
	"truthlens-api/models"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	newsFeedCacheKey = "news_feed:latest"
	feedFetchTimeout = 10 * time.Second
)

type FeedItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Source    string `json:"source"`
	Published string `json:"published"`
	Summary   string `json:"summary"`
}

// NewsFeed aggregates the latest items of the configured RSS feeds.
type NewsFeed struct {
	parser    *gofeed.Parser
	sanitizer *bluemonday.Policy
	urls      []string
	perFeed   int
	ttl       time.Duration
	kv        *KVStore
	logger    logging.Logger
}

func NewNewsFeed(cfg config.FeedConfig, kv *KVStore, logger logging.Logger) *NewsFeed {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: feedFetchTimeout}
	parser.UserAgent = fetchUserAgent

	sanitizer := bluemonday.StrictPolicy()
	sanitizer.AddSpaceWhenStrippingTag(true)

	perFeed := max(cfg.PerFeed, 0)

	return &NewsFeed{
		parser:    parser,
		sanitizer: sanitizer,
		urls:      cfg.URLs,
		perFeed:   perFeed,
		ttl:       time.Duration(cfg.CacheSeconds) * time.Second,
		kv:        kv,
		logger:    logger,
	}
}

// Latest returns cached items when present, otherwise fetches every feed.
// Feeds that fail are skipped.
func (n *NewsFeed) Latest(ctx context.Context) ([]FeedItem, error) {
	var cached []FeedItem
	err := n.kv.Get(ctx, newsFeedCacheKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		n.logger.WithError(err).Warn("News feed cache read failed")
	}
	return n.Refresh(ctx), nil
}

// Refresh fetches every feed and replaces the cached items when at least one
// item was found.
func (n *NewsFeed) Refresh(ctx context.Context) []FeedItem {
	items := make([]FeedItem, 0, len(n.urls)*n.perFeed)
	for _, feedURL := range n.urls {
		items = append(items, n.fetch(ctx, feedURL)...)
	}

	if len(items) > 0 && n.ttl > 0 {
		if err := n.kv.Set(ctx, newsFeedCacheKey, items, n.ttl); err != nil {
			n.logger.WithError(err).Warn("News feed cache write failed")
		}
	}
	return items
}

func (n *NewsFeed) fetch(ctx context.Context, feedURL string) []FeedItem {
	ctx, cancel := context.WithTimeout(ctx, feedFetchTimeout)
	defer cancel()

	feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		n.logger.WithError(err).WithField("feed", feedURL).Warn("Failed to fetch news feed")
		return nil
	}

	source := strings.TrimSpace(feed.Title)
	if u, err := url.Parse(feedURL); err == nil && u.Hostname() != "" {
		source = u.Hostname()
	}

	var items []FeedItem
	for _, it := range feed.Items {
		if len(items) == n.perFeed {
			break
		}
		if it == nil || strings.TrimSpace(it.Title) == "" {
			continue
		}
		items = append(items, FeedItem{
			Title:     strings.TrimSpace(it.Title),
			Link:      it.Link,
			Source:    source,
			Published: publishedString(it),
			Summary:   models.Truncate(n.plainText(it.Description), SummaryTextRunes),
		})
	}
	return items
}

func publishedString(it *gofeed.Item) string {
	if it.PublishedParsed != nil {
		return it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return it.Published
}

// plainText drops all markup; the sanitizer escapes entities, so they are
// decoded afterwards.
func (n *NewsFeed) plainText(s string) string {
	s = html.UnescapeString(n.sanitizer.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
