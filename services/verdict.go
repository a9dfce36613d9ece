package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"truthlens-api/logging"
	"truthlens-api/models"
)

const (
	heuristicConfidenceCap = 0.75
	neutralConfidence      = 0.5
	synthesisSystemPrompt  = "You are an expert fact-checker. Always respond with valid JSON only."
)

// Sensationalist phrases in English, Russian and Kazakh.
var suspiciousPhrases = []string{
	"miracle", "secret", "shocking", "doctors hate", "they don't want you to know",
	"breakthrough", "amazing", "incredible", "unbelievable", "cure-all",
	"чудо", "секрет", "шокирующий", "врачи скрывают", "невероятный",
	"керемет", "құпия", "таңқаларлық", "дәрігерлер жасырады",
}

// Institutional and academic vocabulary with the credibility points a match adds.
var crediblePhrases = []struct {
	phrase string
	weight float64
}{
	{"wikipedia", 1}, {"reuters", 1}, {"bbc", 1}, {"tengrinews", 1},
	{"kazinform", 1}, {"egemen", 1}, {"zakon", 1},
	{"научный", 1}, {"исследование", 1},
	{"ғылыми", 1}, {"зерттеу", 1},
	{"университет", 2}, {"институт", 2},
}

var errMalformedVerdict = errors.New("malformed verdict payload")

// PlaceholderVerdict is returned when the model answered but its payload was unusable.
func PlaceholderVerdict() models.Verdict {
	return models.Verdict{
		Label:           models.LabelUncertain,
		Confidence:      neutralConfidence,
		Explanation:     "Unable to verify due to technical issues. Please check manually with trusted sources.",
		ReasoningPoints: []string{"Technical analysis error", "Manual verification recommended"},
	}
}

var synthesisPrompts = map[Locale]string{
	LocaleEN: `As a fact-checking expert, analyze this text and determine if it's FAKE, TRUE, or UNCERTAIN.

Original text: "%s"

Claims extracted: %s

Search results from trusted sources:
%s

Provide your analysis in this exact JSON format:
{
  "label": "FAKE|TRUE|UNCERTAIN",
  "confidence": 0.85,
  "explanation": "Detailed explanation of why this is fake/true/uncertain based on the evidence",
  "reasoning_points": ["Point 1", "Point 2", "Point 3"]
}`,
	LocaleRU: `Как эксперт по проверке фактов, проанализируйте этот текст и определите, является ли он ЛОЖНЫМ, ИСТИННЫМ или НЕОПРЕДЕЛЕННЫМ.

Исходный текст: "%s"

Извлеченные утверждения: %s

Результаты поиска из надежных источников:
%s

Предоставьте анализ в точно таком JSON формате:
{
  "label": "FAKE|TRUE|UNCERTAIN",
  "confidence": 0.85,
  "explanation": "Подробное объяснение, почему это ложь/правда/неопределенно на основе доказательств",
  "reasoning_points": ["Пункт 1", "Пункт 2", "Пункт 3"]
}`,
	LocaleKZ: `Фактіні тексеру сарапшысы ретінде бұл мәтінді талдап, оның ЖАЛҒАН, ШЫНАЙЫ немесе БЕЛГІСІЗ екенін анықтаңыз.

Бастапқы мәтін: "%s"

Алынған тұжырымдар: %s

Сенімді көздерден іздеу нәтижелері:
%s

Талдауыңызды дәл осы JSON форматында беріңіз:
{
  "label": "FAKE|TRUE|UNCERTAIN",
  "confidence": 0.85,
  "explanation": "Дәлелдемелер негізінде неліктен бұл жалған/шын/белгісіз екенінің толық түсіндірмесі",
  "reasoning_points": ["1-нүкте", "2-нүкте", "3-нүкте"]
}`,
}

// Arguments: %[1]d suspicious count, %[2]g credibility score, %[3]d source count.
var heuristicExplanations = map[Locale]map[models.Label]string{
	LocaleEN: {
		models.LabelFake:      "Analysis suggests this content may be unreliable based on %[1]d suspicious indicators including sensationalist language patterns.",
		models.LabelTrue:      "Content appears credible with %[2]g reliability indicators and %[3]d supporting sources.",
		models.LabelUncertain: "Unable to definitively verify this content. Found %[1]d suspicious and %[2]g credible indicators.",
	},
	LocaleRU: {
		models.LabelFake:      "Анализ показывает, что этот контент может быть недостоверным на основе %[1]d подозрительных индикаторов.",
		models.LabelTrue:      "Контент кажется достоверным с %[2]g индикаторами надежности и %[3]d подтверждающими источниками.",
		models.LabelUncertain: "Невозможно окончательно проверить этот контент. Найдено %[1]d подозрительных и %[2]g достоверных индикаторов.",
	},
	LocaleKZ: {
		models.LabelFake:      "Талдау бұл мазмұнның %[1]d күмәнді көрсеткіштер негізінде сенімсіз болуы мүмкін екенін көрсетеді.",
		models.LabelTrue:      "Мазмұн %[2]g сенімділік көрсеткіштері және %[3]d қолдаушы көздермен сенімді көрінеді.",
		models.LabelUncertain: "Бұл мазмұнды нақты тексеру мүмкін емес. %[1]d күмәнді және %[2]g сенімді көрсеткіштер табылды.",
	},
}

type VerdictSynthesizer struct {
	model   ModelClient
	logger  logging.Logger
	metrics *Metrics
}

func NewVerdictSynthesizer(model ModelClient, logger logging.Logger, metrics *Metrics) *VerdictSynthesizer {
	return &VerdictSynthesizer{model: model, logger: logger, metrics: metrics}
}

// Synthesize produces the final verdict. A failed model call degrades to the
// heuristic scorer; a model reply that is not a valid verdict yields the
// placeholder instead.
func (v *VerdictSynthesizer) Synthesize(ctx context.Context, text string, claims []string, sources []models.SourceResult, locale Locale, useModel bool) models.Verdict {
	if !useModel || v.model == nil {
		return HeuristicVerdict(text, len(sources), locale)
	}

	reply, err := v.model.Complete(ctx, CompletionRequest{
		System:      synthesisSystemPrompt,
		Prompt:      buildSynthesisPrompt(text, claims, sources, locale),
		MaxTokens:   800,
		Temperature: 0.1,
	})
	if err != nil {
		v.logger.WithError(err).Warn("Model verification failed, using heuristic analysis")
		v.metrics.IncFallback("verdict")
		return HeuristicVerdict(text, len(sources), locale)
	}

	verdict, err := ParseModelVerdict(reply)
	if err != nil {
		v.logger.WithError(err).WithField("reply", models.Truncate(reply, 200)).Warn("Unusable model verdict")
		v.metrics.IncFallback("verdict_placeholder")
		return PlaceholderVerdict()
	}
	return verdict
}

func buildSynthesisPrompt(text string, claims []string, sources []models.SourceResult, locale Locale) string {
	lines := make([]string, 0, len(sources))
	for _, s := range sources {
		lines = append(lines, fmt.Sprintf("- %s: %s (%s)", s.Title, s.Snippet, s.URL))
	}
	return fmt.Sprintf(localized(synthesisPrompts, locale), text, strings.Join(claims, "; "), strings.Join(lines, "\n"))
}

type modelVerdict struct {
	Label           string   `json:"label"`
	Confidence      *float64 `json:"confidence"`
	Explanation     string   `json:"explanation"`
	ReasoningPoints []string `json:"reasoning_points"`
}

// ParseModelVerdict decodes and validates the JSON verdict in a model reply.
// Markdown code fences are tolerated.
func ParseModelVerdict(reply string) (models.Verdict, error) {
	var mv modelVerdict
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &mv); err != nil {
		return models.Verdict{}, fmt.Errorf("%w: %v", errMalformedVerdict, err)
	}

	label, ok := models.ParseLabel(mv.Label)
	if !ok {
		return models.Verdict{}, fmt.Errorf("%w: label %q", errMalformedVerdict, mv.Label)
	}
	if mv.Confidence == nil {
		return models.Verdict{}, fmt.Errorf("%w: missing confidence", errMalformedVerdict)
	}
	if c := *mv.Confidence; c < 0 || c > 1 || math.IsNaN(c) {
		return models.Verdict{}, fmt.Errorf("%w: confidence %v out of range", errMalformedVerdict, c)
	}
	if strings.TrimSpace(mv.Explanation) == "" {
		return models.Verdict{}, fmt.Errorf("%w: empty explanation", errMalformedVerdict)
	}

	points := make([]string, 0, len(mv.ReasoningPoints))
	for _, p := range mv.ReasoningPoints {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}

	return models.Verdict{
		Label:           label,
		Confidence:      *mv.Confidence,
		Explanation:     strings.TrimSpace(mv.Explanation),
		ReasoningPoints: points,
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// HeuristicVerdict scores text by phrase matches. Each source adds half a
// credibility point. Confidence stays within [0.5, 0.75].
func HeuristicVerdict(text string, sourceCount int, locale Locale) models.Verdict {
	lower := strings.ToLower(text)

	suspicious := 0
	for _, p := range suspiciousPhrases {
		if strings.Contains(lower, p) {
			suspicious++
		}
	}
	credibility := 0.0
	for _, p := range crediblePhrases {
		if strings.Contains(lower, p.phrase) {
			credibility += p.weight
		}
	}
	credibility += 0.5 * float64(sourceCount)

	label := models.LabelUncertain
	confidence := neutralConfidence
	switch {
	case float64(suspicious) > credibility:
		label = models.LabelFake
		confidence = heuristicConfidence(float64(suspicious))
	case credibility > float64(suspicious):
		label = models.LabelTrue
		confidence = heuristicConfidence(credibility)
	}

	tmpl := localized(heuristicExplanations, locale)[label]
	return models.Verdict{
		Label:       label,
		Confidence:  confidence,
		Explanation: fmt.Sprintf(tmpl, suspicious, credibility, sourceCount),
		ReasoningPoints: []string{
			fmt.Sprintf("Suspicious indicators: %d", suspicious),
			fmt.Sprintf("Credibility indicators: %g", credibility),
			fmt.Sprintf("Supporting sources found: %d", sourceCount),
			"Analysis performed using heuristic pattern matching",
		},
	}
}

func heuristicConfidence(winner float64) float64 {
	return RoundConfidence(math.Min(heuristicConfidenceCap, neutralConfidence+0.1*winner))
}

// RoundConfidence rounds to two decimals.
func RoundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}
