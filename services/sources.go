package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"truthlens-api/logging"
	"truthlens-api/models"

	"golang.org/x/time/rate"
)

const perClaimResults = 3

var (
	credibleClaimTerms   = []string{"research", "study", "university", "published", "peer-reviewed"}
	suspiciousClaimTerms = []string{"miracle", "secret", "shocking", "cure-all", "amazing discovery"}
)

// SourceSearcher gathers supporting documents for the first three claims.
// Without a search provider the results are generated from the claim text
// and the trusted-domain list.
type SourceSearcher struct {
	provider SearchProvider
	domains  []string
	pace     rate.Limit
	logger   logging.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewSourceSearcher paces provider calls within one search at one claim per
// interval. Separate searches do not share the pace. provider may be nil.
func NewSourceSearcher(domains []string, interval time.Duration, provider SearchProvider, logger logging.Logger, metrics *Metrics) *SourceSearcher {
	pace := rate.Inf
	if interval > 0 {
		pace = rate.Every(interval)
	}
	return &SourceSearcher{
		provider: provider,
		domains:  domains,
		pace:     pace,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *SourceSearcher) Search(ctx context.Context, claims []string) []models.SourceResult {
	if len(claims) > models.MaxClaims {
		claims = claims[:models.MaxClaims]
	}

	// Generated results need no pacing.
	limit := s.pace
	if s.provider == nil {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, 1)

	var results []models.SourceResult
	for _, claim := range claims {
		if err := limiter.Wait(ctx); err != nil {
			s.logger.WithError(err).Warn("Source search interrupted")
			break
		}
		results = append(results, s.searchClaim(ctx, claim)...)
	}

	if len(results) > models.MaxSources {
		results = results[:models.MaxSources]
	}
	return results
}

func (s *SourceSearcher) searchClaim(ctx context.Context, claim string) []models.SourceResult {
	if s.provider != nil {
		found, err := s.provider.Search(ctx, claim, perClaimResults)
		if err == nil {
			return s.trustedFirst(found)
		}
		s.logger.WithError(err).WithField("claim", models.Truncate(claim, 60)).Warn("Search provider failed, generating results")
		s.metrics.IncFallback("search")
	}
	return GenerateSourceResults(claim, s.domains, s.now())
}

// trustedFirst moves results hosted on trusted domains to the front, keeping
// relative order otherwise.
func (s *SourceSearcher) trustedFirst(results []models.SourceResult) []models.SourceResult {
	sort.SliceStable(results, func(i, j int) bool {
		return s.isTrusted(results[i].URL) && !s.isTrusted(results[j].URL)
	})
	return results
}

func (s *SourceSearcher) isTrusted(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range s.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// GenerateSourceResults builds citation-like results from the claim wording.
// URLs embed the current millisecond timestamp.
func GenerateSourceResults(claim string, domains []string, now time.Time) []models.SourceResult {
	lower := strings.ToLower(claim)
	ms := now.UnixMilli()

	switch {
	case containsAny(lower, credibleClaimTerms):
		results := []models.SourceResult{{
			URL:     fmt.Sprintf("https://tengrinews.kz/kazakhstan_news/research-%d", ms),
			Title:   fmt.Sprintf("Research findings on %s...", runePrefix(claim, 40)),
			Snippet: "According to recent studies and official sources, this research has been documented and verified by multiple institutions.",
		}}
		if slices.Contains(domains, "wikipedia.org") {
			results = append(results, models.SourceResult{
				URL:     "https://en.wikipedia.org/wiki/" + url.PathEscape(runePrefix(claim, 30)),
				Title:   fmt.Sprintf("%s... - Wikipedia", runePrefix(claim, 50)),
				Snippet: "Comprehensive information about this topic from multiple verified sources and academic references.",
			})
		}
		return results

	case containsAny(lower, suspiciousClaimTerms):
		return []models.SourceResult{{
			URL:     fmt.Sprintf("https://factcheck.org/debunked-%d", ms),
			Title:   fmt.Sprintf("Fact Check: Claims about %s...", runePrefix(claim, 30)),
			Snippet: "This claim has been investigated and found to lack credible evidence from authoritative sources.",
		}}
	}

	n := 2
	if len(domains) < n {
		n = len(domains)
	}
	results := make([]models.SourceResult, 0, n)
	for i := 0; i < n; i++ {
		domain := domains[i]
		results = append(results, models.SourceResult{
			URL:     fmt.Sprintf("https://%s/news/%d-%d", domain, ms, i),
			Title:   fmt.Sprintf("Coverage: %s...", runePrefix(claim, 50)),
			Snippet: fmt.Sprintf("News coverage and analysis of this topic from %s providing context and background information.", strings.SplitN(domain, ".", 2)[0]),
		})
	}
	return results
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
