package model

import (
	"strconv"
	"strings"
)

// Region is an INSEE region and the departments that make it up.
type Region struct {
	Code        string
	Name        string
	Departments []string
}

// Regions lists every French region (metropolitan and overseas) keyed by
// INSEE code. Headquarters filtering relies on the department sets, so the
// table covers all of them.
var Regions = map[string]Region{
	"01": {"01", "Guadeloupe", []string{"971"}},
	"02": {"02", "Martinique", []string{"972"}},
	"03": {"03", "Guyane", []string{"973"}},
	"04": {"04", "La Réunion", []string{"974"}},
	"06": {"06", "Mayotte", []string{"976"}},
	"11": {"11", "Île-de-France", []string{"75", "77", "78", "91", "92", "93", "94", "95"}},
	"24": {"24", "Centre-Val de Loire", []string{"18", "28", "36", "37", "41", "45"}},
	"27": {"27", "Bourgogne-Franche-Comté", []string{"21", "25", "39", "58", "70", "71", "89", "90"}},
	"28": {"28", "Normandie", []string{"14", "27", "50", "61", "76"}},
	"32": {"32", "Hauts-de-France", []string{"02", "59", "60", "62", "80"}},
	"44": {"44", "Grand Est", []string{"08", "10", "51", "52", "54", "55", "57", "67", "68", "88"}},
	"52": {"52", "Pays de la Loire", []string{"44", "49", "53", "72", "85"}},
	"53": {"53", "Bretagne", []string{"22", "29", "35", "56"}},
	"75": {"75", "Nouvelle-Aquitaine", []string{"16", "17", "19", "23", "24", "33", "40", "47", "64", "79", "86", "87"}},
	"76": {"76", "Occitanie", []string{"09", "11", "12", "30", "31", "32", "34", "46", "48", "65", "66", "81", "82"}},
	"84": {"84", "Auvergne-Rhône-Alpes", []string{"01", "03", "07", "15", "26", "38", "42", "43", "63", "69", "73", "74"}},
	"93": {"93", "Provence-Alpes-Côte d'Azur", []string{"04", "05", "06", "13", "83", "84"}},
	"94": {"94", "Corse", []string{"2A", "2B"}},
}

// RegionHasDepartment reports whether dept belongs to region.
func RegionHasDepartment(region, dept string) bool {
	r, ok := Regions[region]
	if !ok {
		return false
	}
	for _, d := range r.Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// RegionName returns the display name for a region code, or the code itself.
func RegionName(code string) string {
	if r, ok := Regions[code]; ok {
		return r.Name
	}
	return code
}

// sectionRanges maps NAF rev. 2 divisions to their section letter. Each
// entry covers divisions [lo, hi].
var sectionRanges = []struct {
	lo, hi  int
	section string
	label   string
}{
	{1, 3, "A", "Agriculture, sylviculture et pêche"},
	{5, 9, "B", "Industries extractives"},
	{10, 33, "C", "Industrie manufacturière"},
	{35, 35, "D", "Production et distribution d'électricité, de gaz, de vapeur et d'air conditionné"},
	{36, 39, "E", "Production et distribution d'eau ; assainissement, gestion des déchets et dépollution"},
	{41, 43, "F", "Construction"},
	{45, 47, "G", "Commerce ; réparation d'automobiles et de motocycles"},
	{49, 53, "H", "Transports et entreposage"},
	{55, 56, "I", "Hébergement et restauration"},
	{58, 63, "J", "Information et communication"},
	{64, 66, "K", "Activités financières et d'assurance"},
	{68, 68, "L", "Activités immobilières"},
	{69, 75, "M", "Activités spécialisées, scientifiques et techniques"},
	{77, 82, "N", "Activités de services administratifs et de soutien"},
	{84, 84, "O", "Administration publique"},
	{85, 85, "P", "Enseignement"},
	{86, 88, "Q", "Santé humaine et action sociale"},
	{90, 93, "R", "Arts, spectacles et activités récréatives"},
	{94, 96, "S", "Autres activités de services"},
	{97, 98, "T", "Activités des ménages en tant qu'employeurs"},
	{99, 99, "U", "Activités extra-territoriales"},
}

// SectionForDivision returns the NAF section letter for a 2-digit division
// code, or "" when the division does not exist.
func SectionForDivision(division string) string {
	n, err := strconv.Atoi(division)
	if err != nil || len(division) != 2 {
		return ""
	}
	for _, r := range sectionRanges {
		if n >= r.lo && n <= r.hi {
			return r.section
		}
	}
	return ""
}

// DivisionLabels are the sector labels offered in the filter UI.
var DivisionLabels = map[string]string{
	"41": "Construction de bâtiments",
	"42": "Génie civil",
	"43": "Travaux de construction spécialisés",
	"46": "Commerce de gros",
	"47": "Commerce de détail",
	"58": "Édition",
	"62": "Programmation informatique",
	"63": "Services d'information",
	"64": "Activités financières",
	"66": "Activités auxiliaires de services financiers",
	"68": "Activités immobilières",
	"69": "Activités juridiques et comptables",
	"70": "Activités des sièges sociaux ; conseil de gestion",
	"71": "Activités d'architecture et d'ingénierie",
	"72": "Recherche-développement scientifique",
	"73": "Publicité et études de marché",
	"74": "Autres activités spécialisées, scientifiques et techniques",
	"77": "Activités de location et location-bail",
	"78": "Activités liées à l'emploi",
	"85": "Enseignement",
	"86": "Activités pour la santé humaine",
}

// SectorLabel returns a human label for a full NAF code such as "62.01Z":
// the division label when known, otherwise the section label.
func SectorLabel(code string) string {
	if len(code) < 2 {
		return ""
	}
	div := code[:2]
	if l, ok := DivisionLabels[div]; ok {
		return l
	}
	sec := SectionForDivision(div)
	for _, r := range sectionRanges {
		if r.section == sec {
			return r.label
		}
	}
	return ""
}

// LegalForms maps the short legal-form names accepted in filters to the
// INSEE "nature juridique" codes the directory API filters on.
var LegalForms = map[string][]string{
	"SAS":  {"5710"},
	"SASU": {"5720"},
	"SARL": {"5499"},
	"EURL": {"5498"},
	"SA":   {"5505", "5510", "5515", "5520", "5522", "5525", "5530", "5599"},
	"SCI":  {"6540"},
}

// NatureCodes resolves a filter legal form into nature_juridique codes. A
// 4-digit code is passed through.
func NatureCodes(form string) []string {
	form = strings.ToUpper(strings.TrimSpace(form))
	if codes, ok := LegalForms[form]; ok {
		return codes
	}
	if natureRe.MatchString(form) {
		return []string{form}
	}
	return nil
}

// LegalFormName returns the short name for a nature_juridique code when it
// is one of LegalForms, otherwise the code.
func LegalFormName(code string) string {
	switch {
	case code == "5710":
		return "SAS"
	case code == "5720":
		return "SASU"
	case code == "5499":
		return "SARL"
	case code == "5498":
		return "EURL"
	case code == "6540":
		return "SCI"
	case strings.HasPrefix(code, "55"):
		return "SA"
	}
	return code
}

// EmployeeBrackets maps INSEE headcount bracket codes to labels.
var EmployeeBrackets = map[string]string{
	"00": "0 salarié",
	"01": "1-2 salariés",
	"02": "3-5 salariés",
	"03": "6-9 salariés",
	"11": "10-19 salariés",
	"12": "20-49 salariés",
	"21": "50-99 salariés",
	"22": "100-199 salariés",
	"31": "200-249 salariés",
	"32": "250-499 salariés",
	"41": "500-999 salariés",
	"42": "1000-1999 salariés",
	"51": "2000-4999 salariés",
	"52": "5000-9999 salariés",
	"53": "10000+ salariés",
}

// BracketLabel returns the label for a bracket code, or the code itself.
func BracketLabel(code string) string {
	if l, ok := EmployeeBrackets[code]; ok {
		return l
	}
	return code
}
