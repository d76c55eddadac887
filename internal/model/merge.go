package model

import "strings"

// fillString sets *dst to src when dst is blank.
func fillString(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
		*dst = src
	}
}

// fillPtr sets *dst to src when dst is nil. The value is copied so the
// record never aliases the enrichment result.
func fillPtr[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// Merge fills the record's empty fields from e. Populated fields are never
// replaced, which makes Merge idempotent: Merge(Merge(r, e), e) == Merge(r, e).
func Merge(r CompanyRecord, e EnrichmentResult) CompanyRecord {
	fillString(&r.Website, e.Website)
	fillString(&r.Logo, e.Logo)
	fillString(&r.Phone, e.Phone)
	fillString(&r.Email, e.Email)
	fillString(&r.Description, e.Description)
	fillString(&r.RevenueTrend, e.Trend)
	fillString(&r.Director, e.Director)
	fillPtr(&r.DirectorAge, e.DirectorAge)
	fillPtr(&r.Revenue, e.Revenue)
	fillPtr(&r.NetResult, e.NetResult)
	return r
}

// Combine fills the empty fields of a from b. Enrichment steps that run
// independently produce partial results that are combined before Merge.
func Combine(a, b EnrichmentResult) EnrichmentResult {
	fillString(&a.Website, b.Website)
	fillString(&a.Logo, b.Logo)
	fillString(&a.Phone, b.Phone)
	fillString(&a.Email, b.Email)
	fillString(&a.Description, b.Description)
	fillString(&a.Trend, b.Trend)
	fillString(&a.Director, b.Director)
	fillPtr(&a.DirectorAge, b.DirectorAge)
	fillPtr(&a.Revenue, b.Revenue)
	fillPtr(&a.NetResult, b.NetResult)
	return a
}

func trimUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
