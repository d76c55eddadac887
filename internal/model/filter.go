package model

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// RevenueMode selects where the revenue band is applied.
type RevenueMode string

const (
	// RevenueServer sends the band to the directory API.
	RevenueServer RevenueMode = "server"
	// RevenuePost over-fetches and filters on known revenue after enrichment.
	RevenuePost RevenueMode = "post"
)

// SearchFilter describes which companies a pipeline run should return. It is
// passed by value through every stage; nothing mutates a shared default.
type SearchFilter struct {
	RevenueMin       *int64      `json:"ca_min,omitempty" validate:"omitempty,gte=0"`
	RevenueMax       *int64      `json:"ca_max,omitempty" validate:"omitempty,gte=0"`
	Region           string      `json:"region,omitempty" validate:"omitempty,region"`
	Sector           string      `json:"secteur_naf,omitempty" validate:"omitempty,sector"`
	LegalForm        string      `json:"forme_juridique,omitempty" validate:"omitempty,legalform"`
	EmployeeBrackets []string    `json:"tranches_effectif,omitempty" validate:"omitempty,dive,bracket"`
	MinCompanyAge    int         `json:"age_min,omitempty" validate:"gte=0,lte=200"`
	DirectorAgeMin   int         `json:"age_dirigeant_min,omitempty" validate:"gte=0,lte=120"`
	DirectorAgeMax   int         `json:"age_dirigeant_max,omitempty" validate:"gte=0,lte=120"`
	Cap              int         `json:"limit" validate:"gt=0,lte=10000"`
	RevenueMode      RevenueMode `json:"revenue_mode,omitempty" validate:"omitempty,oneof=server post"`
}

// DefaultEmployeeBrackets is the 20-249 employee band typical of the 5-50M€
// revenue target.
var DefaultEmployeeBrackets = []string{"12", "21", "22", "31"}

// DefaultFilter returns a filter for 5M€-50M€ companies capped at 10 results.
func DefaultFilter() SearchFilter {
	lo, hi := int64(5_000_000), int64(50_000_000)
	return SearchFilter{
		RevenueMin:  &lo,
		RevenueMax:  &hi,
		Cap:         10,
		RevenueMode: RevenueServer,
	}
}

// Brackets returns the requested employee brackets or the default set.
func (f SearchFilter) Brackets() []string {
	if len(f.EmployeeBrackets) > 0 {
		return f.EmployeeBrackets
	}
	return DefaultEmployeeBrackets
}

// Mode returns the effective revenue mode.
func (f SearchFilter) Mode() RevenueMode {
	if f.RevenueMode == "" {
		return RevenueServer
	}
	return f.RevenueMode
}

// DirectorAgeActive reports whether the director-age window filters anything.
func (f SearchFilter) DirectorAgeActive() bool {
	return f.DirectorAgeMin > 0 || f.DirectorAgeMax > 0
}

// DirectorAgeMatches reports whether age lies in the window. An unknown age
// never matches an active window.
func (f SearchFilter) DirectorAgeMatches(age *int) bool {
	if !f.DirectorAgeActive() {
		return true
	}
	if age == nil {
		return false
	}
	if f.DirectorAgeMin > 0 && *age < f.DirectorAgeMin {
		return false
	}
	if f.DirectorAgeMax > 0 && *age > f.DirectorAgeMax {
		return false
	}
	return true
}

// RevenueMatches reports whether a known revenue lies within the band.
// Unknown revenue matches.
func (f SearchFilter) RevenueMatches(revenue *int64) bool {
	if revenue == nil {
		return true
	}
	if f.RevenueMin != nil && *revenue < *f.RevenueMin {
		return false
	}
	if f.RevenueMax != nil && *revenue > *f.RevenueMax {
		return false
	}
	return true
}

var (
	fullSectorRe = regexp.MustCompile(`^\d{2}\.\d{2}[A-Z]$`)
	divisionRe   = regexp.MustCompile(`^\d{2}$`)
	natureRe     = regexp.MustCompile(`^\d{4}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("region", func(fl validator.FieldLevel) bool {
		_, ok := Regions[fl.Field().String()]
		return ok
	})
	_ = v.RegisterValidation("sector", func(fl validator.FieldLevel) bool {
		s := strings.ToUpper(fl.Field().String())
		return fullSectorRe.MatchString(s) || divisionRe.MatchString(s)
	})
	_ = v.RegisterValidation("legalform", func(fl validator.FieldLevel) bool {
		s := strings.ToUpper(fl.Field().String())
		_, ok := LegalForms[s]
		return ok || natureRe.MatchString(s)
	})
	_ = v.RegisterValidation("bracket", func(fl validator.FieldLevel) bool {
		_, ok := EmployeeBrackets[fl.Field().String()]
		return ok
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		f := sl.Current().Interface().(SearchFilter)
		if f.RevenueMin != nil && f.RevenueMax != nil && *f.RevenueMin > *f.RevenueMax {
			sl.ReportError(f.RevenueMin, "ca_min", "RevenueMin", "ltefield", "RevenueMax")
		}
		if f.DirectorAgeMin > 0 && f.DirectorAgeMax > 0 && f.DirectorAgeMin > f.DirectorAgeMax {
			sl.ReportError(f.DirectorAgeMin, "age_dirigeant_min", "DirectorAgeMin", "ltefield", "DirectorAgeMax")
		}
	}, SearchFilter{})
	return v
}

// Validate checks the filter invariants: min <= max when both are set,
// cap > 0, and known codes for region, sector, legal form and brackets.
func (f SearchFilter) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fe.Field()+" failed "+fe.Tag())
			}
			return eris.Errorf("model: invalid filter: %s", strings.Join(parts, ", "))
		}
		return eris.Wrap(err, "model: invalid filter")
	}
	return nil
}
