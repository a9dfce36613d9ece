package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"truthlens-api/logging"
	"truthlens-api/models"
)

const (
	minSentenceRunes = 20
	maxSentenceRunes = 200
	chunkWords       = 15
)

var (
	sentenceBoundary = regexp.MustCompile(`[.!?]+`)
	listMarker       = regexp.MustCompile(`^(?:[-*•]+\s*|\d+[.)]\s+)`)
)

var claimPrompts = map[Locale]string{
	LocaleEN: "Extract 3-5 key factual claims from this text that can be verified:\n\"%s\"\n\nReturn only the claims, one per line.",
	LocaleRU: "Извлеките 3-5 ключевых фактических утверждений из этого текста, которые можно проверить:\n\"%s\"\n\nВерните только утверждения, по одному на строку.",
	LocaleKZ: "Мәтіннен тексеруге болатын 3-5 негізгі фактілік тұжырымдарды алыңыз:\n\"%s\"\n\nТек тұжырымдарды қайтарыңыз, әр жолға біреуден.",
}

type ClaimExtractor struct {
	model   ModelClient
	logger  logging.Logger
	metrics *Metrics
}

func NewClaimExtractor(model ModelClient, logger logging.Logger, metrics *Metrics) *ClaimExtractor {
	return &ClaimExtractor{model: model, logger: logger, metrics: metrics}
}

// Extract returns at most three claims. The model is only consulted when
// useModel is set; any model failure drops to sentence splitting.
func (e *ClaimExtractor) Extract(ctx context.Context, text string, locale Locale, useModel bool) []string {
	if useModel && e.model != nil {
		claims, err := e.extractWithModel(ctx, text, locale)
		if err == nil && len(claims) > 0 {
			return claims
		}
		if err != nil {
			e.logger.WithError(err).Warn("Model claim extraction failed, using fallback")
		} else {
			e.logger.Warn("Model returned no claims, using fallback")
		}
		e.metrics.IncFallback("claims")
	}
	return ExtractClaimsFallback(text)
}

func (e *ClaimExtractor) extractWithModel(ctx context.Context, text string, locale Locale) ([]string, error) {
	reply, err := e.model.Complete(ctx, CompletionRequest{
		Prompt:      fmt.Sprintf(localized(claimPrompts, locale), text),
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}
	return parseClaimLines(reply), nil
}

func parseClaimLines(reply string) []string {
	var claims []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		claims = append(claims, line)
		if len(claims) == models.MaxClaims {
			break
		}
	}
	return claims
}

// ExtractClaimsFallback picks the longest sentences of 20 to 200 runes. When no
// sentence qualifies it falls back to 15-word windows longer than 20 runes.
func ExtractClaimsFallback(text string) []string {
	var sentences []string
	for _, s := range sentenceBoundary.Split(text, -1) {
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(s)
		if n >= minSentenceRunes && n <= maxSentenceRunes {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) > 0 {
		sort.SliceStable(sentences, func(i, j int) bool {
			return utf8.RuneCountInString(sentences[i]) > utf8.RuneCountInString(sentences[j])
		})
		if len(sentences) > models.MaxClaims {
			sentences = sentences[:models.MaxClaims]
		}
		return sentences
	}

	words := strings.Fields(text)
	var chunks []string
	for i := 0; i < len(words) && len(chunks) < models.MaxClaims; i += chunkWords {
		end := i + chunkWords
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if utf8.RuneCountInString(chunk) > minSentenceRunes {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
