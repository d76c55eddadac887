package scorer

import (
	"fmt"
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Prompt is a system instruction plus the per-record message.
type Prompt struct {
	System string
	User   string
}

const systemPrompt = `Tu es un analyste M&A spécialisé dans les PME françaises. Tu qualifies des cibles d'acquisition pour un fonds de capital-transmission.

CRITÈRES DE SCORING :
- A : PME indépendante, rentable, dirigeant fondateur (idéalement 55 ans et plus), CA entre 5M et 50M, pas de fonds au capital.
- B : PME intéressante, 1 ou 2 critères manquants.
- C : Trop petite ou signes d'accompagnement existant (fonds, groupe).
- D : Déjà en LBO, fonds au capital, filiale de groupe ou hors cible CA.

Réponds UNIQUEMENT avec un objet JSON contenant les clés :
"score" (A, B, C ou D), "score_label" (courte qualification), "resume" (activité en une phrase), "analyse" (2 à 3 phrases d'analyse M&A), "justification" (les critères déterminants).`

const unknown = "Non disponible"

// BuildPrompt embeds the record's known fields.
func BuildPrompt(rec model.CompanyRecord) Prompt {
	var b strings.Builder
	b.WriteString("ENTREPRISE :\n")
	line := func(label, v string) {
		if v == "" {
			v = unknown
		}
		fmt.Fprintf(&b, "- %s : %s\n", label, v)
	}

	sector := rec.SectorLabel
	if sector == "" {
		sector = model.SectorLabel(rec.SectorCode)
	}
	form := model.LegalFormName(rec.LegalForm)
	if form == "" {
		form = rec.LegalForm
	}

	line("Nom", rec.Name)
	line("SIREN", rec.SIREN)
	line("Activité", strings.TrimSpace(rec.SectorCode+" "+sector))
	line("Chiffre d'affaires", millions(rec.Revenue))
	line("Évolution CA", rec.RevenueTrend)
	line("Résultat net", millions(rec.NetResult))
	line("Forme juridique", form)
	line("Date de création", rec.CreationDate)
	line("Dirigeant", rec.Director)
	if rec.DirectorAge != nil {
		line("Âge dirigeant", fmt.Sprintf("%d ans", *rec.DirectorAge))
	} else {
		line("Âge dirigeant", "")
	}
	line("Ville", rec.Address.City)
	line("Effectif", model.BracketLabel(rec.EmployeeBracket))
	if rec.Description != "" {
		line("Description", rec.Description)
	}

	b.WriteString("\nQualifie cette entreprise.")
	return Prompt{System: systemPrompt, User: b.String()}
}

func millions(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f M€", float64(*v)/1e6)
}
