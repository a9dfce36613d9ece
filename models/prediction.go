package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Label is the tri-state verdict classification.
type Label string

const (
	LabelFake      Label = "FAKE"
	LabelTrue      Label = "TRUE"
	LabelUncertain Label = "UNCERTAIN"
)

func (l Label) Valid() bool {
	switch l {
	case LabelFake, LabelTrue, LabelUncertain:
		return true
	}
	return false
}

// ParseLabel accepts any casing and surrounding whitespace.
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Valid()
}

const (
	MaxClaims  = 3
	MaxSources = 10
)

type SourceResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Verdict struct {
	Label           Label    `json:"label"`
	Confidence      float64  `json:"confidence"`
	Explanation     string   `json:"explanation"`
	ReasoningPoints []string `json:"reasoning_points"`
}

// PredictionRecord is the persisted result of one pipeline run. It is written
// once under a generated id and never mutated.
type PredictionRecord struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	URL             *string   `json:"url"`
	Label           Label     `json:"label"`
	Confidence      float64   `json:"confidence"`
	Explanation     string    `json:"explanation"`
	ReasoningPoints []string  `json:"reasoning_points"`
	Sources         []string  `json:"sources"`
	Language        string    `json:"language"`
	Claims          []string  `json:"claims"`
	AnalysisMethod  string    `json:"analysis_method,omitempty"`
	UserID          uint      `json:"user_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type PredictionSummary struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Label        Label     `json:"label"`
	Confidence   float64   `json:"confidence"`
	Language     string    `json:"language"`
	CreatedAt    time.Time `json:"created_at"`
	SourcesCount int       `json:"sources_count"`
}

// Summary shortens the text to maxRunes, appending "..." when it was cut.
func (r PredictionRecord) Summary(maxRunes int) PredictionSummary {
	return PredictionSummary{
		ID:           r.ID,
		Text:         Truncate(r.Text, maxRunes),
		Label:        r.Label,
		Confidence:   r.Confidence,
		Language:     r.Language,
		CreatedAt:    r.CreatedAt,
		SourcesCount: len(r.Sources),
	}
}

// Truncate cuts s to at most n runes and marks the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
