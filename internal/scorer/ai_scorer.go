package scorer

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Completion is an LLM answer. Structured is set when the provider returned
// schema-bound output; Text otherwise.
type Completion struct {
	Text       string
	Structured json.RawMessage
}

// Completer sends one prompt to an LLM provider.
type Completer interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (Completion, error)
}

// AIConfig tunes the AIScorer.
type AIConfig struct {
	MaxAttempts      int
	RateLimitBackoff time.Duration
	// RatePerSec throttles LLM calls across all workers. Zero disables it.
	RatePerSec float64
}

// DefaultAIConfig retries a rate-limited call once after 10s.
func DefaultAIConfig() AIConfig {
	return AIConfig{MaxAttempts: 2, RateLimitBackoff: 10 * time.Second, RatePerSec: 1}
}

// AIScorer grades records with an LLM. It never returns an error: any
// failure yields Default().
type AIScorer struct {
	completer Completer
	policy    resilience.Policy
	limiter   *rate.Limiter
}

// NewAIScorer builds an AIScorer around c.
func NewAIScorer(c Completer, cfg AIConfig) *AIScorer {
	policy := resilience.RateLimitPolicy(cfg.MaxAttempts, cfg.RateLimitBackoff)
	policy.OnRetry = resilience.RetryLogger("scorer", c.Name())

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &AIScorer{completer: c, policy: policy, limiter: limiter}
}

// Score implements Scorer.
func (s *AIScorer) Score(ctx context.Context, rec model.CompanyRecord) model.ScoreResult {
	log := zap.L().With(zap.String("siren", rec.SIREN), zap.String("provider", s.completer.Name()))
	prompt := BuildPrompt(rec)

	comp, err := resilience.DoVal(ctx, s.policy, func(ctx context.Context) (Completion, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return Completion{}, eris.Wrap(err, "scorer: wait for limiter")
		}
		return s.completer.Complete(ctx, prompt)
	})
	if err != nil {
		log.Warn("ai scoring failed, using default", zap.Error(err))
		return Default()
	}

	res, err := ParseCompletion(comp)
	if err != nil {
		log.Warn("unusable ai response, using default", zap.Error(err))
		return Default()
	}
	return res
}

var (
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	objectPattern = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// ExtractJSON isolates the first JSON object in free text, ignoring markdown
// fences and surrounding prose.
func ExtractJSON(text string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	obj := objectPattern.FindString(text)
	return obj, obj != ""
}

type gradePayload struct {
	Score         *string `json:"score"`
	ScoreLabel    *string `json:"score_label"`
	Resume        *string `json:"resume"`
	Analyse       *string `json:"analyse"`
	Justification *string `json:"justification"`
}

func (p gradePayload) empty() bool {
	return p.Score == nil && p.ScoreLabel == nil && p.Resume == nil && p.Analyse == nil && p.Justification == nil
}

// ParseCompletion turns an LLM answer into a ScoreResult. Structured output
// is used when present, then JSON extracted from the text.
func ParseCompletion(c Completion) (model.ScoreResult, error) {
	raw := []byte(c.Structured)
	if len(raw) == 0 {
		obj, ok := ExtractJSON(c.Text)
		if !ok {
			return model.ScoreResult{}, eris.New("scorer: no JSON object in response")
		}
		raw = []byte(obj)
	}

	var p gradePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.ScoreResult{}, eris.Wrap(err, "scorer: decode grade")
	}
	if p.empty() {
		return model.ScoreResult{}, eris.New("scorer: response has none of the expected keys")
	}
	return p.toResult(), nil
}

func (p gradePayload) toResult() model.ScoreResult {
	grade := model.GradeC
	if p.Score != nil {
		if g, ok := model.ParseGrade(*p.Score); ok {
			grade = g
		}
	}

	res := model.ScoreResult{
		Grade:         grade,
		Label:         deref(p.ScoreLabel),
		Summary:       deref(p.Resume),
		Analysis:      deref(p.Analyse),
		Justification: deref(p.Justification),
		Source:        "ai",
	}
	if res.Label == "" {
		res.Label = CategoryLabels[grade]
	}
	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
