package resolve

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

// fakeDirectory serves canned pages and lookups.
type fakeDirectory struct {
	mu       sync.Mutex
	pages    [][]annuaire.Company
	lookups  map[string]annuaire.Company
	failPage int
	apiError int
	calls    []annuaire.SearchParams
}

func (f *fakeDirectory) Search(_ context.Context, p annuaire.SearchParams) (*annuaire.SearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()

	if p.Page == f.failPage {
		return nil, eris.New("connection refused")
	}
	if p.Page == f.apiError {
		return &annuaire.SearchResponse{Erreur: []byte(`"quota"`)}, nil
	}
	if p.Page < 1 || p.Page > len(f.pages) {
		return &annuaire.SearchResponse{}, nil
	}
	return &annuaire.SearchResponse{Results: f.pages[p.Page-1], Page: p.Page}, nil
}

func (f *fakeDirectory) Lookup(_ context.Context, q string) (*annuaire.Company, error) {
	if co, ok := f.lookups[q]; ok {
		return &co, nil
	}
	return nil, annuaire.ErrNotFound
}

func (f *fakeDirectory) pageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func person(prenoms, nom, birth string) annuaire.Dirigeant {
	return annuaire.Dirigeant{
		Type: annuaire.TypePersonnePhysique, Prenoms: prenoms, Nom: nom,
		Qualite: "Président", DateDeNaissance: birth,
	}
}

func entity(name, siren string) annuaire.Dirigeant {
	return annuaire.Dirigeant{
		Type: annuaire.TypePersonneMorale, Denomination: name, SIREN: siren, Qualite: "Président",
	}
}
