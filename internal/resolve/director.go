package resolve

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

// Director is the natural person chosen to represent a company.
type Director struct {
	// Label is "Prénoms NOM (qualité)", suffixed " [via ENTITY]" when found
	// through a legal-entity officer, or "PM: ENTITY (qualité)" when no
	// person was found at all.
	Label string
	Age   *int
}

// Plausible director age bounds; anything outside is a data error.
const (
	minDirectorAge = 20
	maxDirectorAge = 95
)

// AgeFromBirthYear converts a "YYYY" or "YYYY-MM" birth date into an age at
// now. It returns nil when the year is missing or the age is implausible.
func AgeFromBirthYear(birth string, now time.Time) *int {
	if len(birth) < 4 {
		return nil
	}
	y, err := strconv.Atoi(birth[:4])
	if err != nil {
		return nil
	}
	age := now.Year() - y
	if age < minDirectorAge || age > maxDirectorAge {
		return nil
	}
	return &age
}

func personLabel(d annuaire.Dirigeant) string {
	label := strings.TrimSpace(strings.TrimSpace(d.Prenoms) + " " + strings.TrimSpace(d.Nom))
	if d.Qualite != "" {
		label += " (" + d.Qualite + ")"
	}
	return strings.TrimSpace(label)
}

func entityName(d annuaire.Dirigeant) string {
	if d.Denomination != "" {
		return d.Denomination
	}
	return d.Nom
}

// DirectorFinder picks a company's director, following a legal-entity
// officer one level down when no natural person is listed.
type DirectorFinder struct {
	dir annuaire.Client
	now func() time.Time
}

// NewDirectorFinder creates a finder backed by dir.
func NewDirectorFinder(dir annuaire.Client) *DirectorFinder {
	return &DirectorFinder{dir: dir, now: time.Now}
}

// Find returns the company's director. ok is false when the officer list is
// empty and no deep lookup was possible.
func (f *DirectorFinder) Find(ctx context.Context, siren string, officers []annuaire.Dirigeant) (Director, bool) {
	var entity *annuaire.Dirigeant
	for i := range officers {
		d := officers[i]
		if d.IsLegalEntity() {
			if entity == nil {
				entity = &officers[i]
			}
			continue
		}
		return Director{Label: personLabel(d), Age: AgeFromBirthYear(d.BirthYear(), f.now())}, true
	}

	if entity == nil {
		return Director{}, false
	}

	name := entityName(*entity)
	if entity.SIREN != "" && f.dir != nil {
		if person, ok := f.deepLookup(ctx, siren, entity.SIREN); ok {
			return Director{
				Label: personLabel(person) + " [via " + name + "]",
				Age:   AgeFromBirthYear(person.BirthYear(), f.now()),
			}, true
		}
	}

	label := "PM: " + name
	if entity.Qualite != "" {
		label += " (" + entity.Qualite + ")"
	}
	return Director{Label: label}, true
}

// deepLookup queries the entity officer's own record for a natural person.
func (f *DirectorFinder) deepLookup(ctx context.Context, siren, entitySIREN string) (annuaire.Dirigeant, bool) {
	co, err := f.dir.Lookup(ctx, entitySIREN)
	if err != nil {
		zap.L().Debug("director deep lookup failed",
			zap.String("siren", siren),
			zap.String("stage", "director"),
			zap.String("entity_siren", entitySIREN),
			zap.Error(err),
		)
		return annuaire.Dirigeant{}, false
	}
	for _, d := range co.Dirigeants {
		if d.Type == annuaire.TypePersonnePhysique && strings.TrimSpace(d.Prenoms) != "" {
			return d, true
		}
	}
	return annuaire.Dirigeant{}, false
}
