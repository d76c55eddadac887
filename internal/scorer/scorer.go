// Package scorer grades prospects A to D, either with a deterministic
// points table or with an LLM.
package scorer

import (
	"context"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Scorer grades one record.
type Scorer interface {
	Score(ctx context.Context, rec model.CompanyRecord) model.ScoreResult
}

// CategoryLabels describe each grade when the model gives no label.
var CategoryLabels = map[model.Grade]string{
	model.GradeA: "PME indépendante, rentable, dirigeant fondateur",
	model.GradeB: "PME intéressante, 1-2 critères manquants",
	model.GradeC: "Trop petite ou signes d'accompagnement existant",
	model.GradeD: "Déjà en LBO / fonds au capital / hors cible CA",
}

// Default is the result used whenever a record cannot be graded.
func Default() model.ScoreResult {
	return model.ScoreResult{
		Grade:         model.GradeC,
		Label:         CategoryLabels[model.GradeC],
		Summary:       "Analyse non disponible",
		Analysis:      "Analyse non disponible",
		Justification: "Erreur lors de l'analyse",
		Source:        "default",
	}
}
