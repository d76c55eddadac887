package enrich

import (
	"fmt"

	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

// trendThreshold is the growth percentage separating growth or decline
// from a stable revenue.
const trendThreshold = 10.0

// Trend summarises revenue direction from the earliest to the latest year
// with a positive revenue, e.g. "Croissance (+25% sur 3a)". It returns ""
// when fewer than two such years are published.
func Trend(years []annuaire.YearFinance) string {
	var kept []annuaire.YearFinance
	for _, y := range years {
		if y.CA != nil && *y.CA > 0 {
			kept = append(kept, y)
		}
	}
	if len(kept) < 2 {
		return ""
	}

	earliest, latest := *kept[0].CA, *kept[len(kept)-1].CA
	growth := (latest - earliest) / earliest * 100

	label := "Stable"
	switch {
	case growth > trendThreshold:
		label = "Croissance"
	case growth < -trendThreshold:
		label = "Decroissance"
	}
	return fmt.Sprintf("%s (%+.0f%% sur %da)", label, growth, len(kept)-1)
}
