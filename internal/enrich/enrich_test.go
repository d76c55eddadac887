package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

type stubDirectory struct {
	companies map[string]annuaire.Company
	err       error
	lookups   []string
}

func (s *stubDirectory) Search(context.Context, annuaire.SearchParams) (*annuaire.SearchResponse, error) {
	return &annuaire.SearchResponse{}, nil
}

func (s *stubDirectory) Lookup(_ context.Context, q string) (*annuaire.Company, error) {
	s.lookups = append(s.lookups, q)
	if s.err != nil {
		return nil, s.err
	}
	co, ok := s.companies[q]
	if !ok {
		return nil, annuaire.ErrNotFound
	}
	return &co, nil
}

type stubLookup struct {
	url   string
	calls int
}

func (s *stubLookup) Resolve(context.Context, string, string) (string, bool) {
	s.calls++
	return s.url, s.url != ""
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func acme() annuaire.Company {
	return annuaire.Company{
		SIREN:      "123456789",
		NomComplet: "ACME INDUSTRIE",
		Finances: map[string]annuaire.Finance{
			"2021": {CA: f64(8_000_000)},
			"2022": {CA: f64(9_000_000)},
			"2023": {CA: f64(10_000_000), ResultatNet: f64(450_000)},
		},
		Dirigeants: []annuaire.Dirigeant{{
			Type: annuaire.TypePersonnePhysique, Nom: "DUPONT", Prenoms: "Jean",
			Qualite: "Président", DateDeNaissance: "1962-04",
		}},
	}
}

func TestTrend(t *testing.T) {
	years := func(cas ...*float64) []annuaire.YearFinance {
		out := make([]annuaire.YearFinance, len(cas))
		for i, ca := range cas {
			out[i] = annuaire.YearFinance{Year: string(rune('0' + i)), Finance: annuaire.Finance{CA: ca}}
		}
		return out
	}

	assert.Equal(t, "Croissance (+25% sur 2a)", Trend(years(f64(8), f64(9), f64(10))))
	assert.Equal(t, "Decroissance (-50% sur 1a)", Trend(years(f64(10), f64(5))))
	assert.Equal(t, "Stable (+5% sur 1a)", Trend(years(f64(100), f64(105))))
	assert.Equal(t, "Stable (+0% sur 1a)", Trend(years(f64(100), nil, f64(0), f64(100))))
	assert.Empty(t, Trend(years(f64(100), nil)))
	assert.Empty(t, Trend(nil))
}

func TestEngine_Enrich(t *testing.T) {
	dir := &stubDirectory{companies: map[string]annuaire.Company{"123456789": acme()}}
	sites := &stubLookup{url: "https://www.acme-industrie.fr/"}
	e := NewEngine(dir, WithWebsiteLookup(sites))

	rec := model.CompanyRecord{SIREN: "123456789", Name: "ACME INDUSTRIE", Address: model.Address{City: "LYON"}}
	res := e.Enrich(context.Background(), rec, false)

	assert.Equal(t, "Croissance (+25% sur 2a)", res.Trend)
	assert.Equal(t, i64(10_000_000), res.Revenue)
	assert.Equal(t, i64(450_000), res.NetResult)
	assert.Equal(t, "Jean DUPONT (Président)", res.Director)
	assert.NotNil(t, res.DirectorAge)
	assert.Equal(t, "https://www.acme-industrie.fr/", res.Website)
	assert.Equal(t, "https://logo.clearbit.com/acme-industrie.fr", res.Logo)
	assert.Equal(t, 1, sites.calls)
}

func TestEngine_RecordNeverOverwrites(t *testing.T) {
	dir := &stubDirectory{companies: map[string]annuaire.Company{"123456789": acme()}}
	sites := &stubLookup{url: "https://other.fr/"}
	e := NewEngine(dir, WithWebsiteLookup(sites))

	age := 48
	rec := model.CompanyRecord{
		SIREN:       "123456789",
		Name:        "ACME INDUSTRIE",
		Website:     "https://acme.fr",
		Director:    "Marie MARTIN (Gérante)",
		DirectorAge: &age,
		Revenue:     i64(12_000_000),
	}
	got := e.Record(context.Background(), rec, false)

	assert.Equal(t, "https://acme.fr", got.Website)
	assert.Equal(t, "Marie MARTIN (Gérante)", got.Director)
	assert.Equal(t, 48, *got.DirectorAge)
	assert.Equal(t, int64(12_000_000), *got.Revenue)
	assert.Equal(t, int64(450_000), *got.NetResult)
	assert.Equal(t, "https://logo.clearbit.com/acme.fr", got.Logo)
	assert.Zero(t, sites.calls)

	assert.Equal(t, got, e.Record(context.Background(), got, false))
}

func TestEngine_LookupMismatchIgnored(t *testing.T) {
	other := acme()
	other.SIREN = "999999999"
	dir := &stubDirectory{companies: map[string]annuaire.Company{"123456789": other}}
	e := NewEngine(dir)

	res := e.Enrich(context.Background(), model.CompanyRecord{SIREN: "123456789", Name: "ACME"}, false)
	assert.Empty(t, res.Trend)
	assert.Empty(t, res.Director)
	assert.Nil(t, res.Revenue)
}

func TestEngine_FailuresDegradeGracefully(t *testing.T) {
	dir := &stubDirectory{err: errors.New("annuaire: unexpected status 500")}
	e := NewEngine(dir, WithWebsiteLookup(&stubLookup{}))

	rec := model.CompanyRecord{SIREN: "123456789", Name: "ACME"}
	res := e.Enrich(context.Background(), rec, false)
	assert.Equal(t, model.EnrichmentResult{}, res)
	assert.Equal(t, rec, e.Record(context.Background(), rec, false))
}

func TestEngine_Contacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head>
<meta name="description" content="Fabricant de pièces mécaniques de précision.">
</head><body>
<a href="mailto:contact@acme.fr?subject=Bonjour">Écrire</a>
<p>Standard : 04 72 00 00 01</p>
</body></html>`))
	}))
	defer srv.Close()

	e := NewEngine(nil,
		WithWebsiteLookup(&stubLookup{url: srv.URL}),
		WithContacts(NewContactExtractor(srv.Client())),
		WithLogoBaseURL(""),
	)
	rec := model.CompanyRecord{SIREN: "123456789", Name: "ACME"}
	assert.Empty(t, e.Enrich(context.Background(), rec, false).Email)

	res := e.Enrich(context.Background(), rec, true)
	require.Equal(t, srv.URL, res.Website)
	assert.Empty(t, res.Logo)
	assert.Equal(t, "contact@acme.fr", res.Email)
	assert.Equal(t, "0472000001", res.Phone)
	assert.Equal(t, "Fabricant de pièces mécaniques de précision.", res.Description)
}
