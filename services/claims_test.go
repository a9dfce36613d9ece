package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"truthlens-api/logging"
)

// stubModel is a ModelClient returning a canned reply.
type stubModel struct {
	available bool
	reply     string
	err       error
	requests  []CompletionRequest
}

func (s *stubModel) Available() bool { return s.available }

func (s *stubModel) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.requests = append(s.requests, req)
	return s.reply, s.err
}

func TestExtractClaimsFallbackSentences(t *testing.T) {
	text := "Short one. " +
		"This sentence is definitely long enough to qualify. " +
		"Another qualifying sentence that is even longer than the previous one! " +
		"Is this a question that should also be kept? " +
		"The longest qualifying sentence of the whole paragraph is this one right here."

	got := ExtractClaimsFallback(text)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(got), got)
	}
	want := []string{
		"The longest qualifying sentence of the whole paragraph is this one right here",
		"Another qualifying sentence that is even longer than the previous one",
		"This sentence is definitely long enough to qualify",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestExtractClaimsFallbackBounds(t *testing.T) {
	exact20 := strings.Repeat("a", 20)
	exact200 := strings.Repeat("b", 200)
	tooLong := strings.Repeat("c", 201)
	text := exact20 + ". " + exact200 + ". " + tooLong + ". " + strings.Repeat("d", 19) + "."

	got := ExtractClaimsFallback(text)
	if !reflect.DeepEqual(got, []string{exact200, exact20}) {
		t.Errorf("got %v", got)
	}
	for _, c := range got {
		if n := utf8.RuneCountInString(c); n < 20 || n > 200 {
			t.Errorf("claim of %d runes out of bounds", n)
		}
	}
}

func TestExtractClaimsFallbackCyrillicCountsRunes(t *testing.T) {
	// 20 Cyrillic letters are 40 bytes but only 20 runes.
	s := strings.Repeat("ж", 20)
	if got := ExtractClaimsFallback(s + "."); !reflect.DeepEqual(got, []string{s}) {
		t.Errorf("got %v", got)
	}
}

func TestExtractClaimsFallbackChunks(t *testing.T) {
	// One run-on sentence over 200 runes forces word windows.
	words := make([]string, 50)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	got := ExtractClaimsFallback(text)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != strings.Join(words[:15], " ") {
		t.Errorf("first chunk = %q", got[0])
	}

	if got := ExtractClaimsFallback("tiny"); len(got) != 0 {
		t.Errorf("tiny text produced %v", got)
	}
}

func TestClaimExtractorUsesModel(t *testing.T) {
	model := &stubModel{available: true, reply: "1. First claim\n\n- Second claim\n* Third claim\nFourth claim"}
	e := NewClaimExtractor(model, logging.NewDiscardLogger(), nil)

	got := e.Extract(context.Background(), "Some text to check", LocaleRU, true)
	want := []string{"First claim", "Second claim", "Third claim"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	req := model.requests[0]
	if req.MaxTokens != 300 || req.Temperature != 0.3 {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(req.Prompt, "Извлеките") || !strings.Contains(req.Prompt, "Some text to check") {
		t.Errorf("prompt = %q", req.Prompt)
	}
}

func TestClaimExtractorFallsBack(t *testing.T) {
	text := "This sentence is definitely long enough to qualify."
	want := []string{"This sentence is definitely long enough to qualify"}

	tests := []struct {
		name     string
		model    *stubModel
		useModel bool
		calls    int
	}{
		{"model disabled", &stubModel{available: true, reply: "x"}, false, 0},
		{"model error", &stubModel{available: true, err: errors.New("boom")}, true, 1},
		{"empty reply", &stubModel{available: true, reply: " \n \n"}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewClaimExtractor(tt.model, logging.NewDiscardLogger(), nil)
			got := e.Extract(context.Background(), text, LocaleEN, tt.useModel)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
			if len(tt.model.requests) != tt.calls {
				t.Errorf("model calls = %d, want %d", len(tt.model.requests), tt.calls)
			}
		})
	}
}

func TestParseClaimLinesKeepsNumbers(t *testing.T) {
	got := parseClaimLines("3.5 million people voted\n2) Turnout rose")
	want := []string{"3.5 million people voted", "Turnout rose"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
