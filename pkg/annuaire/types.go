package annuaire

import (
	"encoding/json"
	"sort"
	"strings"
)

// SearchResponse is one page of directory results.
type SearchResponse struct {
	Results      []Company `json:"results"`
	TotalResults int       `json:"total_results"`
	Page         int       `json:"page"`
	PerPage      int       `json:"per_page"`
	TotalPages   int       `json:"total_pages"`
	// Erreur is set when the API declares an error in a 200 body.
	Erreur json.RawMessage `json:"erreur,omitempty"`
}

// APIError returns the API-declared error message, or "" when none.
func (r *SearchResponse) APIError() string {
	raw := strings.TrimSpace(string(r.Erreur))
	if raw == "" || raw == "null" || raw == "false" || raw == `""` {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Erreur, &s); err == nil {
		return s
	}
	return raw
}

// Company is a directory entry.
type Company struct {
	SIREN              string             `json:"siren"`
	NomComplet         string             `json:"nom_complet"`
	NomRaisonSociale   string             `json:"nom_raison_sociale"`
	NatureJuridique    string             `json:"nature_juridique"`
	ActivitePrincipale string             `json:"activite_principale"`
	Section            string             `json:"section_activite_principale"`
	DateCreation       string             `json:"date_creation"`
	TrancheEffectif    string             `json:"tranche_effectif_salarie"`
	Categorie          string             `json:"categorie_entreprise"`
	Siege              Siege              `json:"siege"`
	Finances           map[string]Finance `json:"finances"`
	Dirigeants         []Dirigeant        `json:"dirigeants"`
}

// Name returns the best display name.
func (c Company) Name() string {
	if c.NomComplet != "" {
		return c.NomComplet
	}
	return c.NomRaisonSociale
}

// Siege is the company's headquarters establishment.
type Siege struct {
	SIRET          string `json:"siret"`
	Adresse        string `json:"adresse"`
	CodePostal     string `json:"code_postal"`
	LibelleCommune string `json:"libelle_commune"`
	Departement    string `json:"departement"`
	Region         string `json:"region"`
}

// Finance holds one fiscal year of published accounts.
type Finance struct {
	CA          *float64 `json:"ca"`
	ResultatNet *float64 `json:"resultat_net"`
}

// YearFinance is a Finance tagged with its year.
type YearFinance struct {
	Year string
	Finance
}

// FinancesByYear returns the published years in ascending order.
func (c Company) FinancesByYear() []YearFinance {
	out := make([]YearFinance, 0, len(c.Finances))
	for y, f := range c.Finances {
		out = append(out, YearFinance{Year: y, Finance: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// LatestFinance returns the most recent year, ok false when none.
func (c Company) LatestFinance() (YearFinance, bool) {
	years := c.FinancesByYear()
	if len(years) == 0 {
		return YearFinance{}, false
	}
	return years[len(years)-1], true
}

// Director types reported by the API.
const (
	TypePersonnePhysique = "personne physique"
	TypePersonneMorale   = "personne morale"
)

// Dirigeant is a listed officer: a natural person or a legal entity.
type Dirigeant struct {
	Type            string `json:"type_dirigeant"`
	Nom             string `json:"nom"`
	Prenoms         string `json:"prenoms"`
	Qualite         string `json:"qualite"`
	DateDeNaissance string `json:"date_de_naissance"`
	AnneeNaissance  string `json:"annee_de_naissance"`
	Denomination    string `json:"denomination"`
	SIREN           string `json:"siren"`
}

// IsLegalEntity reports whether the officer is a company rather than a
// person. Entries without first names are treated as entities.
func (d Dirigeant) IsLegalEntity() bool {
	return d.Type == TypePersonneMorale || strings.TrimSpace(d.Prenoms) == ""
}

// BirthYear returns the 4-digit birth year string, or "".
func (d Dirigeant) BirthYear() string {
	if len(d.DateDeNaissance) >= 4 {
		return d.DateDeNaissance[:4]
	}
	if len(d.AnneeNaissance) >= 4 {
		return d.AnneeNaissance[:4]
	}
	return ""
}
