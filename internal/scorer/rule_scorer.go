package scorer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/prospect-cli/internal/model"
)

// RuleScorer grades a record by summing points from a Rules table.
type RuleScorer struct {
	rules Rules
	now   func() time.Time
}

// NewRuleScorer builds a RuleScorer. rules must already be valid.
func NewRuleScorer(rules Rules) *RuleScorer {
	return &RuleScorer{rules: rules, now: time.Now}
}

// Score implements Scorer. It never fails.
func (s *RuleScorer) Score(_ context.Context, rec model.CompanyRecord) model.ScoreResult {
	points, reasons := s.tally(rec)
	grade, label := s.grade(points)

	summary := rec.SectorLabel
	if summary == "" {
		summary = model.SectorLabel(rec.SectorCode)
	}

	return model.ScoreResult{
		Grade:         grade,
		Label:         label,
		Summary:       summary,
		Analysis:      fmt.Sprintf("Score: %d/100", points),
		Justification: strings.Join(reasons, " | "),
		Points:        points,
		Source:        "rules",
	}
}

func (s *RuleScorer) tally(rec model.CompanyRecord) (int, []string) {
	r := s.rules
	var points int
	var reasons []string

	add := func(b Band, v float64) {
		points += b.Points
		reasons = append(reasons, fmt.Sprintf(b.Reason, v))
	}

	if rec.Revenue != nil && *rec.Revenue > 0 {
		m := float64(*rec.Revenue) / 1e6
		if b, ok := r.Revenue.award(m); ok {
			add(b, m)
		}
	} else if r.Revenue.Unknown != "" {
		reasons = append(reasons, r.Revenue.Unknown)
	}

	if rec.DirectorAge != nil {
		age := float64(*rec.DirectorAge)
		if b, ok := r.DirectorAge.award(age); ok {
			add(b, age)
		}
	} else if r.DirectorAge.Unknown != "" {
		reasons = append(reasons, r.DirectorAge.Unknown)
	}

	for _, f := range r.LegalForm {
		if f.matches(rec.LegalForm) {
			points += f.Points
			reasons = append(reasons, f.Reason)
			break
		}
	}

	if age := rec.CompanyAge(s.now()); age >= 0 {
		if b, ok := r.CompanyAge.award(float64(age)); ok {
			add(b, float64(age))
		}
	} else if r.CompanyAge.Unknown != "" {
		reasons = append(reasons, r.CompanyAge.Unknown)
	}

	if rec.NetResult != nil {
		m := float64(*rec.NetResult) / 1e6
		if *rec.NetResult > 0 {
			points += r.Profit.Positive
			reasons = append(reasons, fmt.Sprintf(r.Profit.PositiveReason, m))
		} else {
			points += r.Profit.NonPositive
			reasons = append(reasons, fmt.Sprintf(r.Profit.NonPositiveReason, m))
		}
	}

	return points, reasons
}

func (s *RuleScorer) grade(points int) (model.Grade, string) {
	for _, t := range s.rules.Grades {
		if points >= t.Min {
			g, _ := model.ParseGrade(t.Grade)
			return g, t.Label
		}
	}
	g, _ := model.ParseGrade(s.rules.Fallback.Grade)
	return g, s.rules.Fallback.Label
}
