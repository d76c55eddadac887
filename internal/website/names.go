package website

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var legalSuffixes = map[string]bool{
	"SAS": true, "SASU": true, "SARL": true, "SA": true, "EURL": true,
	"SCI": true, "SNC": true, "SCOP": true, "SELARL": true, "GIE": true,
}

var acronymStopwords = map[string]bool{
	"SAS": true, "SARL": true, "SA": true, "EURL": true, "SCI": true, "SNC": true,
	"GROUPE": true, "GROUP": true, "FRANCE": true, "HOLDING": true,
	"SOCIETE": true, "STE": true,
	"ET": true, "DE": true, "DES": true, "DU": true, "LA": true, "LE": true, "LES": true,
}

var parenRe = regexp.MustCompile(`\(([^)]*)\)`)

// StripAccents removes combining marks: "Société Générale" -> "Societe Generale".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// BaseName drops parenthetical segments from a directory name:
// "ACME INDUSTRIE (AI)" -> "ACME INDUSTRIE".
func BaseName(name string) string {
	return strings.Join(strings.Fields(parenRe.ReplaceAllString(name, " ")), " ")
}

// Acronyms returns the aliases found in parenthetical segments of name.
// Segments are split on hyphens; parts of 2 to 12 characters that are not
// generic corporate words are kept, in order, without duplicates.
func Acronyms(name string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range parenRe.FindAllStringSubmatch(name, -1) {
		for _, part := range strings.Split(m[1], "-") {
			part = strings.ToUpper(strings.TrimSpace(StripAccents(part)))
			n := len([]rune(part))
			if n < 2 || n > 12 || acronymStopwords[part] || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// Slugs builds candidate domain labels from a company name: the words
// concatenated, then hyphenated. Legal-form words and accents are dropped.
func Slugs(name string) []string {
	words := strings.FieldsFunc(StripAccents(BaseName(name)), func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})

	var kept []string
	for _, w := range words {
		if legalSuffixes[strings.ToUpper(w)] {
			continue
		}
		kept = append(kept, strings.ToLower(w))
	}
	if len(kept) == 0 {
		return nil
	}

	concat := strings.Join(kept, "")
	if len(kept) == 1 {
		return []string{concat}
	}
	return []string{concat, strings.Join(kept, "-")}
}
