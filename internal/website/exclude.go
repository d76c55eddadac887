package website

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultExcludedDomains are directories, data brokers, social networks and
// search engines that never count as a company's own website. Entries are
// matched as substrings of the host and against its registrable domain.
var DefaultExcludedDomains = []string{
	"societe.com",
	"pappers.fr",
	"infogreffe.fr",
	"data.gouv.fr",
	"facebook.com",
	"twitter.com",
	"linkedin.com",
	"instagram.com",
	"youtube.com",
	"google.com",
	"wikipedia.org",
	"verif.com",
	"manageo.fr",
	"pagesjaunes.fr",
	"annuaire.com",
	"duckduckgo.com",
	"entreprises.lefigaro.fr",
	"bing.com",
	"bodacc.fr",
	"xerfi.com",
	"kompass.com",
	"ellisphere.com",
	"amazon.",
	"tiktok.com",
}

// Excluder rejects URLs pointing at excluded domains.
type Excluder struct {
	patterns []string
}

// NewExcluder builds an Excluder from the default list plus extra entries.
func NewExcluder(extra ...string) *Excluder {
	patterns := make([]string, 0, len(DefaultExcludedDomains)+len(extra))
	patterns = append(patterns, DefaultExcludedDomains...)
	for _, p := range extra {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Excluder{patterns: patterns}
}

// IsExcluded reports whether rawURL is unusable as a company website. URLs
// that fail to parse or are not http(s) are excluded.
func (e *Excluder) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return true
	}

	host := strings.ToLower(u.Hostname())
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}
	for _, p := range e.patterns {
		if strings.Contains(host, p) || registrable == p {
			return true
		}
	}
	return false
}

// Domain returns the host of rawURL without a leading "www.", or "" when
// rawURL has no host.
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Logo derives the logo URL for a website from a logo-by-domain service.
func Logo(baseURL, siteURL string) string {
	d := Domain(siteURL)
	if d == "" || baseURL == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + d
}
