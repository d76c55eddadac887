package scorer

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Band awards Points when a value lies in [Min, Max]. A nil bound is open.
// Reason is a format string receiving the value.
type Band struct {
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
	Points int      `yaml:"points"`
	Reason string   `yaml:"reason"`
}

func (b Band) matches(v float64) bool {
	return (b.Min == nil || v >= *b.Min) && (b.Max == nil || v <= *b.Max)
}

// Criterion is an ordered list of bands; the first match wins. Unknown is
// the reason recorded when the value is missing.
type Criterion struct {
	Bands   []Band `yaml:"bands"`
	Unknown string `yaml:"unknown"`
}

func (c Criterion) award(v float64) (Band, bool) {
	for _, b := range c.Bands {
		if b.matches(v) {
			return b, true
		}
	}
	return Band{}, false
}

// FormRule awards Points to a legal form given as an INSEE code or as text.
type FormRule struct {
	Codes    []string `yaml:"codes"`
	Prefixes []string `yaml:"prefixes"`
	Contains []string `yaml:"contains"`
	Points   int      `yaml:"points"`
	Reason   string   `yaml:"reason"`
}

func (r FormRule) matches(form string) bool {
	form = strings.ToUpper(strings.TrimSpace(form))
	if form == "" {
		return false
	}
	for _, c := range r.Codes {
		if form == c {
			return true
		}
	}
	for _, p := range r.Prefixes {
		if strings.HasPrefix(form, p) {
			return true
		}
	}
	for _, s := range r.Contains {
		if strings.Contains(form, strings.ToUpper(s)) {
			return true
		}
	}
	return false
}

// ProfitRule scores the sign of the latest net result.
type ProfitRule struct {
	Positive          int    `yaml:"positive"`
	PositiveReason    string `yaml:"positive_reason"`
	NonPositive       int    `yaml:"non_positive"`
	NonPositiveReason string `yaml:"non_positive_reason"`
}

// Threshold maps a minimum point total to a grade.
type Threshold struct {
	Grade string `yaml:"grade"`
	Min   int    `yaml:"min"`
	Label string `yaml:"label"`
}

// Rules is the RuleScorer points table. Revenue bands are in millions of
// euros, ages in years.
type Rules struct {
	Revenue     Criterion   `yaml:"revenue"`
	DirectorAge Criterion   `yaml:"director_age"`
	LegalForm   []FormRule  `yaml:"legal_form"`
	CompanyAge  Criterion   `yaml:"company_age"`
	Profit      ProfitRule  `yaml:"profit"`
	Grades      []Threshold `yaml:"grades"`
	// Fallback applies below the lowest threshold.
	Fallback Threshold `yaml:"fallback"`
}

func bound(v float64) *float64 { return &v }

// DefaultRules returns the standard points table. The maximum is 100.
func DefaultRules() Rules {
	return Rules{
		Revenue: Criterion{
			Bands: []Band{
				{Min: bound(10), Max: bound(30), Points: 30, Reason: "CA optimal (%.1fM)"},
				{Min: bound(5), Max: bound(50), Points: 20, Reason: "CA correct (%.1fM)"},
				{Min: bound(50), Points: 10, Reason: "CA > 50M (%.0fM)"},
				{Points: 5, Reason: "CA faible (%.1fM)"},
			},
			Unknown: "CA inconnu",
		},
		DirectorAge: Criterion{
			Bands: []Band{
				{Min: bound(55), Points: 25, Reason: "Dirigeant %.0f ans (transmission)"},
				{Min: bound(45), Points: 15, Reason: "Dirigeant %.0f ans"},
				{Points: 5, Reason: "Dirigeant %.0f ans (jeune)"},
			},
			Unknown: "Age dirigeant inconnu",
		},
		LegalForm: []FormRule{
			{Codes: []string{"5710"}, Contains: []string{"SAS"}, Points: 15, Reason: "SAS"},
			{Codes: []string{"5499"}, Contains: []string{"SARL"}, Points: 15, Reason: "SARL"},
			{Prefixes: []string{"55"}, Points: 10, Reason: "SA"},
		},
		CompanyAge: Criterion{
			Bands: []Band{
				{Min: bound(10), Max: bound(30), Points: 15, Reason: "Entreprise mature (%.0f ans)"},
				{Min: bound(5), Max: bound(10), Points: 10, Reason: "Entreprise etablie (%.0f ans)"},
				{Min: bound(30), Points: 8, Reason: "Entreprise ancienne (%.0f ans)"},
			},
		},
		Profit: ProfitRule{
			Positive:          15,
			PositiveReason:    "Rentable (%.1fM)",
			NonPositive:       3,
			NonPositiveReason: "Deficitaire (%.1fM)",
		},
		Grades: []Threshold{
			{Grade: "A", Min: 80, Label: "Prospect prioritaire"},
			{Grade: "B", Min: 55, Label: "Prospect interessant"},
			{Grade: "C", Min: 35, Label: "Prospect secondaire"},
		},
		Fallback: Threshold{Grade: "D", Label: "Hors cible"},
	}
}

// LoadRules reads a YAML points table from path. Sections absent from the
// file keep their defaults. An empty path returns DefaultRules.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrap(err, "scorer: read rules")
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, eris.Wrap(err, "scorer: parse rules")
	}
	if err := ValidateRules(rules); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// ValidateRules checks that a points table is usable.
func ValidateRules(r Rules) error {
	var errs []string

	for name, c := range map[string]Criterion{
		"revenue":      r.Revenue,
		"director_age": r.DirectorAge,
		"company_age":  r.CompanyAge,
	} {
		if len(c.Bands) == 0 {
			errs = append(errs, fmt.Sprintf("%s needs at least one band", name))
		}
		for i, b := range c.Bands {
			if b.Points < 0 {
				errs = append(errs, fmt.Sprintf("%s band %d has negative points", name, i))
			}
			if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
				errs = append(errs, fmt.Sprintf("%s band %d has min > max", name, i))
			}
		}
	}

	if len(r.Grades) == 0 {
		errs = append(errs, "at least one grade threshold is required")
	}
	prev := int(^uint(0) >> 1)
	for _, g := range append(r.Grades, r.Fallback) {
		if _, ok := model.ParseGrade(g.Grade); !ok {
			errs = append(errs, fmt.Sprintf("invalid grade %q", g.Grade))
		}
	}
	for _, g := range r.Grades {
		if g.Min >= prev {
			errs = append(errs, "grade thresholds must be strictly decreasing")
			break
		}
		prev = g.Min
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid rules: %s", strings.Join(errs, "; "))
	}
	return nil
}
