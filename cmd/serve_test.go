package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, f model.SearchFilter, opts pipeline.Options) (*pipeline.Result, error) {
	args := m.Called(ctx, f, opts)
	res, _ := args.Get(0).(*pipeline.Result)
	return res, args.Error(1)
}

var fixedNow = time.Date(2026, 3, 14, 15, 30, 45, 0, time.UTC)

func testServer(t *testing.T, runner prospectRunner) (*server, http.Handler) {
	t.Helper()
	s := newServer(context.Background(), runner, pipeline.Options{Concurrency: 2}, t.TempDir(), true)
	s.now = func() time.Time { return fixedNow }
	s.newTag = func() string { return "a1b2c3d4" }
	return s, buildMux(s, []string{"https://app.example.fr"})
}

func sampleResult() *pipeline.Result {
	rev := int64(12_000_000)
	records := []model.ScoredRecord{
		{
			Record: model.CompanyRecord{SIREN: "552100554", Name: "ACME INDUSTRIE", Revenue: &rev},
			Score:  model.ScoreResult{Grade: model.GradeA, Label: "Prospect prioritaire"},
		},
		{
			Record: model.CompanyRecord{SIREN: "732829320", Name: "BETA SERVICES"},
			Score:  model.ScoreResult{Grade: model.GradeC, Label: "Prospect secondaire"},
		},
	}
	return &pipeline.Result{Records: records, Stats: pipeline.Summarize(records)}
}

func do(h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestBuildMux_Home(t *testing.T) {
	_, h := testServer(t, &mockRunner{})

	rr := do(h, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "prospect-cli", body["service"])
	assert.Contains(t, body["endpoints"], "/scrape")
}

func TestBuildMux_Health(t *testing.T) {
	_, h := testServer(t, &mockRunner{})

	rr := do(h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["ai_configured"])
	assert.Equal(t, "2026-03-14T15:30:45Z", body["timestamp"])
}

func TestBuildMux_Scrape(t *testing.T) {
	runner := &mockRunner{}
	s, h := testServer(t, runner)
	runner.On("Run", mock.Anything, mock.MatchedBy(func(f model.SearchFilter) bool {
		return f.Region == "11" && f.Sector == "62" && f.Cap == 25 && f.LegalForm == "SAS"
	}), mock.Anything).Return(sampleResult(), nil)

	payload := []byte(`{"ca_min": 5000000, "ca_max": 50000000, "region": "11", "secteur_naf": "62", "forme_juridique": "sas", "limit": 25}`)
	rr := do(h, http.MethodPost, "/scrape", payload)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "prospects_20260314_153045_a1b2c3d4.xlsx", body["file"])
	assert.Equal(t, "/download/prospects_20260314_153045_a1b2c3d4.xlsx", body["download_url"])

	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["total"])
	assert.Equal(t, float64(1), stats["score_a"])
	assert.Equal(t, float64(1), stats["score_c"])

	_, err := os.Stat(filepath.Join(s.outputDir, "prospects_20260314_153045_a1b2c3d4.xlsx"))
	assert.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestBuildMux_Scrape_SameSecondDistinctFiles(t *testing.T) {
	runner := &mockRunner{}
	s, h := testServer(t, runner)
	s.newTag = newRunTag
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(sampleResult(), nil)

	first := do(h, http.MethodPost, "/scrape", nil)
	second := do(h, http.MethodPost, "/scrape", nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	a, _ := decodeBody(t, first)["file"].(string)
	b, _ := decodeBody(t, second)["file"].(string)
	assert.NotEqual(t, a, b)
	assert.True(t, validOutputName(a), a)
	assert.True(t, validOutputName(b), b)
	for _, name := range []string{a, b} {
		_, err := os.Stat(filepath.Join(s.outputDir, name))
		assert.NoError(t, err)
	}
}

func TestBuildMux_Scrape_EmptyBodyUsesDefaults(t *testing.T) {
	runner := &mockRunner{}
	_, h := testServer(t, runner)
	def := model.DefaultFilter()
	runner.On("Run", mock.Anything, mock.MatchedBy(func(f model.SearchFilter) bool {
		return f.Cap == def.Cap && *f.RevenueMin == *def.RevenueMin
	}), mock.Anything).Return(sampleResult(), nil)

	rr := do(h, http.MethodPost, "/scrape", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	runner.AssertExpectations(t)
}

func TestBuildMux_Scrape_NoResults(t *testing.T) {
	runner := &mockRunner{}
	_, h := testServer(t, runner)
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, pipeline.ErrNoResults)

	rr := do(h, http.MethodPost, "/scrape", []byte(`{"limit": 5}`))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "error", decodeBody(t, rr)["status"])
}

func TestBuildMux_Scrape_RunFailure(t *testing.T) {
	runner := &mockRunner{}
	_, h := testServer(t, runner)
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("directory down"))

	rr := do(h, http.MethodPost, "/scrape", []byte(`{}`))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "directory down")
}

func TestBuildMux_Scrape_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"limit":`},
		{"zero limit", `{"limit": 0}`},
		{"inverted revenue", `{"ca_min": 50000000, "ca_max": 1000000}`},
		{"unknown region", `{"region": "99"}`},
		{"wrong type", `{"limit": "ten"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			_, h := testServer(t, runner)

			rr := do(h, http.MethodPost, "/scrape", []byte(tt.body))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBuildMux_Jobs(t *testing.T) {
	runner := &mockRunner{}
	_, h := testServer(t, runner)
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(sampleResult(), nil)

	rr := do(h, http.MethodPost, "/jobs", []byte(`{"limit": 2}`))
	require.Equal(t, http.StatusAccepted, rr.Code)
	id, _ := decodeBody(t, rr)["job_id"].(string)
	require.NotEmpty(t, id)

	var body map[string]any
	require.Eventually(t, func() bool {
		rr := do(h, http.MethodGet, "/jobs/"+id, nil)
		if rr.Code != http.StatusOK {
			return false
		}
		body = decodeBody(t, rr)
		return body["status"] == jobDone
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "prospects_20260314_153045_"+id[:8]+".xlsx", body["file"])
	assert.Equal(t, float64(2), body["stats"].(map[string]any)["total"])
	assert.NotNil(t, body["finished_at"])
}

func TestBuildMux_Jobs_Failure(t *testing.T) {
	runner := &mockRunner{}
	_, h := testServer(t, runner)
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	rr := do(h, http.MethodPost, "/jobs", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	id := decodeBody(t, rr)["job_id"].(string)

	require.Eventually(t, func() bool {
		body := decodeBody(t, do(h, http.MethodGet, "/jobs/"+id, nil))
		return body["status"] == jobFailed && body["error"] == "boom"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBuildMux_Jobs_TooMany(t *testing.T) {
	runner := &mockRunner{}
	_, h := testServer(t, runner)
	release := make(chan struct{})
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil, pipeline.ErrNoResults)
	defer close(release)

	for i := 0; i < maxRunningJobs; i++ {
		require.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/jobs", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/jobs", nil).Code)
}

func TestBuildMux_Jobs_NotFound(t *testing.T) {
	_, h := testServer(t, &mockRunner{})

	rr := do(h, http.MethodGet, "/jobs/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildMux_Download(t *testing.T) {
	s, h := testServer(t, &mockRunner{})
	name := "prospects_20260101_000000.csv"
	require.NoError(t, os.WriteFile(filepath.Join(s.outputDir, name), []byte("Score\nA\n"), 0o644))

	rr := do(h, http.MethodGet, "/download/"+name, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), name)
	assert.Equal(t, "Score\nA\n", rr.Body.String())
}

func TestBuildMux_Download_Rejected(t *testing.T) {
	s, h := testServer(t, &mockRunner{})
	require.NoError(t, os.WriteFile(filepath.Join(s.outputDir, "secret.txt"), []byte("x"), 0o644))

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"not an export", "/download/secret.txt", http.StatusBadRequest},
		{"encoded traversal", "/download/..%2Fconfig.yaml", http.StatusBadRequest},
		{"missing file", "/download/prospects_20990101_000000.xlsx", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestBuildMux_Files(t *testing.T) {
	s, h := testServer(t, &mockRunner{})
	older := filepath.Join(s.outputDir, "prospects_20260101_000000.xlsx")
	newer := filepath.Join(s.outputDir, "prospects_20260201_000000.csv")
	require.NoError(t, os.WriteFile(older, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.outputDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(older, fixedNow.Add(-time.Hour), fixedNow.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, fixedNow, fixedNow))

	rr := do(h, http.MethodGet, "/files", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Files []outputFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Files, 2)
	assert.Equal(t, "prospects_20260201_000000.csv", body.Files[0].Name)
	assert.Equal(t, int64(2), body.Files[0].Size)
	assert.Equal(t, "/download/prospects_20260201_000000.csv", body.Files[0].DownloadURL)
	assert.Equal(t, "prospects_20260101_000000.xlsx", body.Files[1].Name)
}

func TestListOutputs_MissingDir(t *testing.T) {
	files, err := listOutputs(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestBuildMux_CORSPreflight(t *testing.T) {
	_, h := testServer(t, &mockRunner{})

	req := httptest.NewRequest(http.MethodOptions, "/scrape", nil)
	req.Header.Set("Origin", "https://app.example.fr")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.fr", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidOutputName(t *testing.T) {
	assert.True(t, validOutputName("prospects_20260314_153045.xlsx"))
	assert.True(t, validOutputName("prospects_20260314_153045.json"))
	assert.True(t, validOutputName("prospects_20260314_153045_a1b2c3d4.xlsx"))
	assert.False(t, validOutputName(""))
	assert.False(t, validOutputName("../prospects_1.xlsx"))
	assert.False(t, validOutputName("prospects_1.txt"))
	assert.False(t, validOutputName("report.xlsx"))
}
