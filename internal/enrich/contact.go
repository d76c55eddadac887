package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/prospect-cli/internal/fetcher"
	"github.com/sells-group/prospect-cli/internal/model"
)

const (
	maxPageBytes       = 500_000
	maxDescriptionRune = 500
)

var (
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\+33|0033)\s*[1-9](?:[\s.-]?\d{2}){4}`),
		regexp.MustCompile(`0[1-9](?:[\s.-]?\d{2}){4}`),
	}
	nonDigitRe = regexp.MustCompile(`\D`)

	blockedEmailDomains = []string{
		"example.com", "sentry.io", "wixpress.com", "wordpress.org",
		"schema.org", "gravatar.com", "w3.org",
	}
	blockedNumbers = map[string]bool{
		"0260210000": true, "0899662006": true, "0891150515": true,
	}
	organizationTypes = map[string]bool{
		"Organization": true, "LocalBusiness": true,
		"Corporation": true, "ProfessionalService": true,
	}
)

// ContactExtractor reads a company's home page for an email address, a
// phone number and a short description.
type ContactExtractor struct {
	client *http.Client
}

// NewContactExtractor creates an extractor fetching pages with client.
func NewContactExtractor(client *http.Client) *ContactExtractor {
	return &ContactExtractor{client: client}
}

// Extract fetches siteURL and returns whatever contact details it exposes.
func (c *ContactExtractor) Extract(ctx context.Context, siteURL string) (model.EnrichmentResult, error) {
	page, err := fetcher.FetchPage(ctx, c.client, siteURL, maxPageBytes)
	if err != nil {
		return model.EnrichmentResult{}, err
	}
	return ParseContacts(page.Body, page.URL)
}

// pageScan collects what one walk over the document finds.
type pageScan struct {
	metaDesc string
	ogDesc   string
	mailto   string
	tel      string
	jsonLD   []string
	text     strings.Builder
}

// ParseContacts extracts contact details from an HTML document served at
// pageURL. Email and phone come from mailto:/tel: links first, then from
// JSON-LD, then from the visible text.
func ParseContacts(body []byte, pageURL string) (model.EnrichmentResult, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return model.EnrichmentResult{}, eris.Wrap(err, "enrich: parse html")
	}

	var s pageScan
	s.walk(doc)

	var res model.EnrichmentResult
	res.Description = longest(s.metaDesc, s.ogDesc)

	ld := parseJSONLD(s.jsonLD)
	if res.Description == "" {
		res.Description = ld.Description
	}
	res.Description = truncateRunes(strings.TrimSpace(res.Description), maxDescriptionRune)

	text := s.text.String()
	res.Email = firstNonEmpty(s.mailto, usableEmail(ld.Email), emailFromText(text, siteDomain(pageURL)))
	res.Phone = firstNonEmpty(s.tel, normalizePhone(ld.Telephone), phoneFromText(text))
	return res, nil
}

func (s *pageScan) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			name := strings.ToLower(attr(n, "name"))
			prop := strings.ToLower(attr(n, "property"))
			content := strings.TrimSpace(attr(n, "content"))
			if name == "description" && s.metaDesc == "" {
				s.metaDesc = content
			}
			if prop == "og:description" && s.ogDesc == "" {
				s.ogDesc = content
			}
		case "a":
			s.link(attr(n, "href"))
		case "script":
			if strings.EqualFold(attr(n, "type"), "application/ld+json") && n.FirstChild != nil {
				s.jsonLD = append(s.jsonLD, n.FirstChild.Data)
			}
			return
		case "style", "noscript":
			return
		}
	}
	if n.Type == html.TextNode {
		s.text.WriteString(n.Data)
		s.text.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c)
	}
}

func (s *pageScan) link(href string) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	switch {
	case s.mailto == "" && strings.HasPrefix(lower, "mailto:"):
		addr, _, _ := strings.Cut(href[len("mailto:"):], "?")
		if decoded, err := url.PathUnescape(addr); err == nil {
			addr = decoded
		}
		s.mailto = usableEmail(strings.TrimSpace(addr))
	case s.tel == "" && strings.HasPrefix(lower, "tel:"):
		s.tel = normalizePhone(href[len("tel:"):])
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

type ldOrganization struct {
	Type        any    `json:"@type"`
	Description string `json:"description"`
	Telephone   string `json:"telephone"`
	Email       string `json:"email"`
}

// parseJSONLD returns the first Organization-like node found across the
// documents. Malformed documents are skipped.
func parseJSONLD(docs []string) ldOrganization {
	var out ldOrganization
	for _, raw := range docs {
		var nodes []json.RawMessage
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal([]byte(trimmed), &nodes); err != nil {
				continue
			}
		} else {
			var graph struct {
				Graph []json.RawMessage `json:"@graph"`
			}
			if err := json.Unmarshal([]byte(trimmed), &graph); err != nil {
				continue
			}
			nodes = graph.Graph
			if len(nodes) == 0 {
				nodes = []json.RawMessage{json.RawMessage(trimmed)}
			}
		}

		for _, n := range nodes {
			var org ldOrganization
			if err := json.Unmarshal(n, &org); err != nil || !isOrganization(org.Type) {
				continue
			}
			if out.Description == "" {
				out.Description = org.Description
			}
			if out.Telephone == "" {
				out.Telephone = org.Telephone
			}
			if out.Email == "" {
				out.Email = strings.TrimPrefix(org.Email, "mailto:")
			}
		}
	}
	return out
}

func isOrganization(t any) bool {
	switch v := t.(type) {
	case string:
		return organizationTypes[v]
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && organizationTypes[s] {
				return true
			}
		}
	}
	return false
}

func usableEmail(addr string) string {
	if !strings.Contains(addr, "@") {
		return ""
	}
	lower := strings.ToLower(addr)
	for _, d := range blockedEmailDomains {
		if strings.Contains(lower, d) {
			return ""
		}
	}
	return addr
}

// emailFromText prefers an address on the site's own domain.
func emailFromText(text, domain string) string {
	var first string
	for _, m := range emailRe.FindAllString(text, -1) {
		if usableEmail(m) == "" {
			continue
		}
		if domain != "" && strings.Contains(strings.ToLower(m), domain) {
			return m
		}
		if first == "" {
			first = m
		}
	}
	return first
}

// normalizePhone reduces a phone number to 10 French digits, mapping the
// +33 / 0033 prefixes to 0. It returns "" for anything else.
func normalizePhone(raw string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	switch {
	case strings.HasPrefix(digits, "0033") && len(digits) == 13:
		digits = "0" + digits[4:]
	case strings.HasPrefix(digits, "33") && len(digits) == 11:
		digits = "0" + digits[2:]
	}
	if len(digits) != 10 || digits[0] != '0' || blockedNumbers[digits] {
		return ""
	}
	return digits
}

func phoneFromText(text string) string {
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			if p := normalizePhone(m); p != "" {
				return p
			}
		}
	}
	return ""
}

func siteDomain(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func longest(a, b string) string {
	if len([]rune(b)) > len([]rune(a)) {
		return b
	}
	return a
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
