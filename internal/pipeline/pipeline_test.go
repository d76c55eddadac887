package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
)

type fakeResolver struct {
	records []model.CompanyRecord
	err     error
	got     model.SearchFilter
}

func (f *fakeResolver) Resolve(_ context.Context, filter model.SearchFilter) ([]model.CompanyRecord, error) {
	f.got = filter
	return f.records, f.err
}

// fakeEnricher sets a website on even SIRENs and a revenue from the table.
type fakeEnricher struct {
	mu       sync.Mutex
	revenue  map[string]int64
	contacts []bool
	jitter   bool
}

func (f *fakeEnricher) Record(_ context.Context, rec model.CompanyRecord, contacts bool) model.CompanyRecord {
	if f.jitter {
		time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
	}
	f.mu.Lock()
	f.contacts = append(f.contacts, contacts)
	f.mu.Unlock()

	if rec.SIREN[len(rec.SIREN)-1]%2 == 0 && rec.Website == "" {
		rec.Website = "https://" + rec.SIREN + ".fr"
	}
	if v, ok := f.revenue[rec.SIREN]; ok && rec.Revenue == nil {
		rec.Revenue = &v
	}
	return rec
}

type fixedScorer struct {
	grades map[string]model.Grade
}

func (s fixedScorer) Score(_ context.Context, rec model.CompanyRecord) model.ScoreResult {
	g, ok := s.grades[rec.SIREN]
	if !ok {
		g = model.GradeC
	}
	return model.ScoreResult{Grade: g, Source: "test"}
}

// countingScorer grades everything C and counts calls.
type countingScorer struct {
	calls atomic.Int32
}

func (s *countingScorer) Score(_ context.Context, _ model.CompanyRecord) model.ScoreResult {
	s.calls.Add(1)
	return model.ScoreResult{Grade: model.GradeC, Source: "test"}
}

func records(n int) []model.CompanyRecord {
	out := make([]model.CompanyRecord, n)
	for i := range out {
		out[i] = model.CompanyRecord{SIREN: fmt.Sprintf("%09d", 100000000+i), Name: fmt.Sprintf("SOCIETE %d", i)}
	}
	return out
}

func TestRun_PreservesResolutionOrder(t *testing.T) {
	recs := records(40)
	p := New(&fakeResolver{records: recs}, &fakeEnricher{jitter: true})

	res, err := p.Run(context.Background(), model.DefaultFilter(), Options{Concurrency: 8, Scorer: fixedScorer{}})
	require.NoError(t, err)
	require.Len(t, res.Records, 40)
	for i, sr := range res.Records {
		assert.Equal(t, recs[i].SIREN, sr.Record.SIREN)
	}
}

func TestRun_Stats(t *testing.T) {
	recs := records(4)
	sc := fixedScorer{grades: map[string]model.Grade{
		recs[0].SIREN: model.GradeA,
		recs[1].SIREN: model.GradeB,
		recs[2].SIREN: model.GradeB,
		recs[3].SIREN: model.GradeD,
	}}
	p := New(&fakeResolver{records: recs}, &fakeEnricher{})

	res, err := p.Run(context.Background(), model.DefaultFilter(), Options{Scorer: sc})
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, A: 1, B: 2, D: 1, WebsitesFound: 2}, res.Stats)
}

func TestRun_DefaultScorerIsRules(t *testing.T) {
	p := New(&fakeResolver{records: records(1)}, &fakeEnricher{})

	res, err := p.Run(context.Background(), model.DefaultFilter(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "rules", res.Records[0].Score.Source)
}

func TestRun_ContactsFlagReachesEnricher(t *testing.T) {
	enr := &fakeEnricher{}
	p := New(&fakeResolver{records: records(3)}, enr)

	_, err := p.Run(context.Background(), model.DefaultFilter(), Options{Contacts: true, Scorer: fixedScorer{}})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, enr.contacts)
}

func TestRun_NoResults(t *testing.T) {
	p := New(&fakeResolver{}, &fakeEnricher{})

	_, err := p.Run(context.Background(), model.DefaultFilter(), Options{})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestRun_ResolverFailure(t *testing.T) {
	p := New(&fakeResolver{err: errors.New("resolve: directory unavailable")}, &fakeEnricher{})

	_, err := p.Run(context.Background(), model.DefaultFilter(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory unavailable")
	assert.NotErrorIs(t, err, ErrNoResults)
}

func TestRun_InvalidFilter(t *testing.T) {
	res := &fakeResolver{records: records(1)}
	f := model.DefaultFilter()
	f.Cap = 0

	_, err := New(res, &fakeEnricher{}).Run(context.Background(), f, Options{})
	assert.Error(t, err)
}

func TestRun_PostRevenueMode(t *testing.T) {
	recs := records(6)
	enr := &fakeEnricher{revenue: map[string]int64{
		recs[0].SIREN: 1_000_000,
		recs[1].SIREN: 8_000_000,
		recs[2].SIREN: 60_000_000,
		recs[3].SIREN: 20_000_000,
		recs[4].SIREN: 30_000_000,
	}}
	resolver := &fakeResolver{records: recs}
	sc := &countingScorer{}
	f := model.DefaultFilter()
	f.Cap = 2

	res, err := New(resolver, enr).Run(context.Background(), f, Options{RevenueMode: model.RevenuePost, Scorer: sc})
	require.NoError(t, err)
	assert.Equal(t, model.RevenuePost, resolver.got.RevenueMode)
	require.Len(t, res.Records, 2)
	assert.Equal(t, recs[1].SIREN, res.Records[0].Record.SIREN)
	assert.Equal(t, recs[3].SIREN, res.Records[1].Record.SIREN)
	assert.Equal(t, 2, res.Stats.Total)
	// Enrichment stops once the cap is met and out-of-band records are never scored.
	assert.Len(t, enr.contacts, 4)
	assert.EqualValues(t, 2, sc.calls.Load())
}

func TestRun_PostRevenueModeSkipsKnownOutOfBand(t *testing.T) {
	recs := records(30)
	for i := range recs {
		v := int64(1_000_000)
		if i%3 == 0 {
			v = 12_000_000
		}
		recs[i].Revenue = &v
	}
	enr := &fakeEnricher{}
	sc := &countingScorer{}
	f := model.DefaultFilter()
	f.Cap = 10

	res, err := New(&fakeResolver{records: recs}, enr).Run(context.Background(), f, Options{RevenueMode: model.RevenuePost, Scorer: sc})
	require.NoError(t, err)
	require.Len(t, res.Records, 10)
	for i, sr := range res.Records {
		assert.Equal(t, recs[i*3].SIREN, sr.Record.SIREN)
	}
	assert.Len(t, enr.contacts, 10)
	assert.EqualValues(t, 10, sc.calls.Load())
}

func TestRun_PostRevenueModeNothingInBand(t *testing.T) {
	recs := records(3)
	for i := range recs {
		v := int64(90_000_000)
		recs[i].Revenue = &v
	}
	enr := &fakeEnricher{}

	_, err := New(&fakeResolver{records: recs}, enr).Run(context.Background(), model.DefaultFilter(), Options{RevenueMode: model.RevenuePost, Scorer: fixedScorer{}})
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Empty(t, enr.contacts)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(&fakeResolver{records: records(5)}, &fakeEnricher{})
	_, err := p.Run(ctx, model.DefaultFilter(), Options{Scorer: fixedScorer{}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Progress(t *testing.T) {
	var mu sync.Mutex
	var calls []int
	p := New(&fakeResolver{records: records(5)}, &fakeEnricher{})

	_, err := p.Run(context.Background(), model.DefaultFilter(), Options{
		Concurrency: 2,
		Scorer:      fixedScorer{},
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 5, total)
			calls = append(calls, done)
		},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestQualify(t *testing.T) {
	p := New(nil, &fakeEnricher{})
	sr := p.Qualify(context.Background(), model.CompanyRecord{SIREN: "123456780", Name: "ACME"}, Options{Scorer: fixedScorer{}})
	assert.Equal(t, "https://123456780.fr", sr.Record.Website)
	assert.Equal(t, model.GradeC, sr.Score.Grade)
}
