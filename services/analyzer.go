package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"truthlens-api/logging"
	"truthlens-api/models"
)

const (
	MethodAI        = "AI-powered"
	MethodHeuristic = "Heuristic analysis"
)

type AnalysisInput struct {
	Text   string
	URL    string
	UserID uint
}

// AnalysisResult carries the stored record plus the full source documents,
// which the record only keeps as URLs.
type AnalysisResult struct {
	Record  models.PredictionRecord
	Sources []models.SourceResult
}

type AnalyzerDeps struct {
	Model       ModelClient
	Resolver    *ContentResolver
	Extractor   *ClaimExtractor
	Searcher    *SourceSearcher
	Synthesizer *VerdictSynthesizer
	Store       *PredictionStore
	Logger      logging.Logger
	Metrics     *Metrics
}

// Analyzer runs the verification pipeline: language, claims, sources,
// verdict and persistence, strictly in that order.
type Analyzer struct {
	AnalyzerDeps
}

func NewAnalyzer(deps AnalyzerDeps) *Analyzer {
	return &Analyzer{AnalyzerDeps: deps}
}

// ModelAvailable reports whether a model credential is configured.
func (a *Analyzer) ModelAvailable() bool {
	return a.Model != nil && a.Model.Available()
}

// Analyze evaluates the input and persists the resulting record.
func (a *Analyzer) Analyze(ctx context.Context, in AnalysisInput) (*AnalysisResult, error) {
	result, err := a.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	if _, err := a.Store.Save(ctx, &result.Record); err != nil {
		return nil, fmt.Errorf("persist analysis: %w", err)
	}
	a.Logger.WithFields(logging.Fields{
		"prediction_id": result.Record.ID,
		"label":         result.Record.Label,
		"confidence":    result.Record.Confidence,
		"method":        result.Record.AnalysisMethod,
	}).Info("Saved prediction")
	return result, nil
}

// Evaluate runs every stage except persistence. Validation failures are
// returned as ErrContentRequired or ErrContentTooShort.
func (a *Analyzer) Evaluate(ctx context.Context, in AnalysisInput) (*AnalysisResult, error) {
	started := time.Now()

	content, err := a.Resolver.Resolve(ctx, in.Text, in.URL)
	if err != nil {
		return nil, err
	}

	// Decided once so both model stages agree.
	useModel := a.ModelAvailable()
	method := MethodHeuristic
	if useModel {
		method = MethodAI
	}

	locale := DetectLanguage(content)
	claims := a.Extractor.Extract(ctx, content, locale, useModel)
	sources := a.Searcher.Search(ctx, claims)
	verdict := a.Synthesizer.Synthesize(ctx, content, claims, sources, locale, useModel)

	record := buildRecord(content, in, locale, claims, sources, verdict, method)
	if len(sources) > models.MaxSources {
		sources = sources[:models.MaxSources]
	}

	a.Metrics.ObserveAnalysis(string(record.Label), method, time.Since(started))
	a.Logger.WithFields(logging.Fields{
		"language": locale,
		"claims":   len(record.Claims),
		"sources":  len(sources),
		"method":   method,
		"elapsed":  time.Since(started).String(),
	}).Debug("Analysis complete")

	return &AnalysisResult{Record: record, Sources: sources}, nil
}

func buildRecord(content string, in AnalysisInput, locale Locale, claims []string, sources []models.SourceResult, v models.Verdict, method string) models.PredictionRecord {
	if !v.Label.Valid() {
		v.Label = models.LabelUncertain
	}
	switch {
	case v.Confidence < 0:
		v.Confidence = 0
	case v.Confidence > 1:
		v.Confidence = 1
	}
	if v.ReasoningPoints == nil {
		v.ReasoningPoints = []string{}
	}

	if len(claims) > models.MaxClaims {
		claims = claims[:models.MaxClaims]
	}
	if claims == nil {
		claims = []string{}
	}
	if len(sources) > models.MaxSources {
		sources = sources[:models.MaxSources]
	}
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}

	var sourceURL *string
	if u := strings.TrimSpace(in.URL); u != "" {
		sourceURL = &u
	}

	return models.PredictionRecord{
		Text:            content,
		URL:             sourceURL,
		Label:           v.Label,
		Confidence:      v.Confidence,
		Explanation:     v.Explanation,
		ReasoningPoints: v.ReasoningPoints,
		Sources:         urls,
		Language:        string(locale),
		Claims:          claims,
		AnalysisMethod:  method,
		UserID:          in.UserID,
	}
}
