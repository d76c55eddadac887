// Package model holds the prospecting data types shared by every stage:
// the search filter, company records, enrichment and score results, and the
// static INSEE reference tables.
package model

import (
	"strconv"
	"time"
)

// Address is a headquarters address.
type Address struct {
	Street     string `json:"adresse,omitempty"`
	PostalCode string `json:"code_postal,omitempty"`
	City       string `json:"ville,omitempty"`
	Department string `json:"departement,omitempty"`
	Region     string `json:"region,omitempty"`
}

// Full renders "street, postal city".
func (a Address) Full() string {
	loc := a.PostalCode
	if a.City != "" {
		if loc != "" {
			loc += " "
		}
		loc += a.City
	}
	switch {
	case a.Street == "":
		return loc
	case loc == "":
		return a.Street
	}
	return a.Street + ", " + loc
}

// CompanyRecord is one prospect. SIREN is the unique key. Nullable numbers
// are pointers so "unknown" is distinct from zero.
type CompanyRecord struct {
	SIREN           string  `json:"siren"`
	SiegeSIRET      string  `json:"siret_siege,omitempty"`
	Name            string  `json:"nom_entreprise"`
	LegalForm       string  `json:"forme_juridique,omitempty"`
	SectorCode      string  `json:"code_naf,omitempty"`
	SectorLabel     string  `json:"libelle_naf,omitempty"`
	Category        string  `json:"categorie,omitempty"`
	CreationDate    string  `json:"date_creation,omitempty"`
	EmployeeBracket string  `json:"tranche_effectif,omitempty"`
	Address         Address `json:"siege"`

	Revenue      *int64 `json:"ca_euros,omitempty"`
	NetResult    *int64 `json:"resultat_euros,omitempty"`
	RevenueTrend string `json:"evolution_ca,omitempty"`

	Director    string `json:"dirigeant_principal,omitempty"`
	DirectorAge *int   `json:"age_dirigeant,omitempty"`

	Website     string `json:"site_web,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Phone       string `json:"telephone,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreationYear returns the incorporation year, or 0 when unknown.
func (r CompanyRecord) CreationYear() int {
	if len(r.CreationDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(r.CreationDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// CompanyAge returns the company age in years at now, or -1 when unknown.
func (r CompanyRecord) CompanyAge(now time.Time) int {
	y := r.CreationYear()
	if y == 0 {
		return -1
	}
	return now.Year() - y
}

// PappersURL links to the company's Pappers page.
func (r CompanyRecord) PappersURL() string {
	return "https://www.pappers.fr/entreprise/" + r.SIREN
}

// DataGouvURL links to the company's annuaire-entreprises page.
func (r CompanyRecord) DataGouvURL() string {
	return "https://annuaire-entreprises.data.gouv.fr/entreprise/" + r.SIREN
}

// EnrichmentResult carries values found for one record. It is consumed once
// by Merge and then dropped.
type EnrichmentResult struct {
	Website     string
	Logo        string
	Phone       string
	Email       string
	Description string
	Trend       string
	Director    string
	DirectorAge *int
	Revenue     *int64
	NetResult   *int64
}

// Grade is a prospect category, A best.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// ParseGrade normalizes s to a Grade. ok is false when s is not A-D.
func ParseGrade(s string) (Grade, bool) {
	switch Grade(trimUpper(s)) {
	case GradeA:
		return GradeA, true
	case GradeB:
		return GradeB, true
	case GradeC:
		return GradeC, true
	case GradeD:
		return GradeD, true
	}
	return "", false
}

// Rank orders grades A=0 .. D=3; unknown grades sort last.
func (g Grade) Rank() int {
	switch g {
	case GradeA:
		return 0
	case GradeB:
		return 1
	case GradeC:
		return 2
	case GradeD:
		return 3
	}
	return 4
}

// ScoreResult is the outcome of grading one record.
type ScoreResult struct {
	Grade         Grade  `json:"score"`
	Label         string `json:"score_label"`
	Summary       string `json:"resume"`
	Analysis      string `json:"analyse"`
	Justification string `json:"justification"`
	Points        int    `json:"points,omitempty"`
	// Source is "rules", "ai" or "default".
	Source string `json:"source,omitempty"`
}

// ScoredRecord pairs a record with its grade.
type ScoredRecord struct {
	Record CompanyRecord `json:"entreprise"`
	Score  ScoreResult   `json:"qualification"`
}
