package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"multiverse/adapters/hclexpr"
	"multiverse/adapters/ols"
	"multiverse/app"
	"multiverse/internal/config"
	"multiverse/internal/testkit"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := testkit.DefaultStudyConfig()
	cfg.Participants = 60
	cfg.MissingRate = 0
	data, err := testkit.NewStudyDataGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("generate dataset: %v", err)
	}
	svc := app.NewMultiverse(hclexpr.New(), ols.NewFitter())
	return NewServer(svc, data, config.RunConfig{Workers: 2}).Router()
}

const studySpec = `{
	"filters": ["certainty > 1"],
	"variables": [{"name": "iv", "selector": "mood_1,mood_2"}],
	"models": [{"name": "linear", "template": "accuracy ~ {iv}"}]
}`

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Rows   int    `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Rows != 60 {
		t.Errorf("body = %+v", body)
	}
}

func TestCount(t *testing.T) {
	h := newTestServer(t)
	rec := postJSON(t, h, "/api/count", studySpec)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		Pipelines     int `json:"pipelines"`
		FilterFactors int `json:"filter_factors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 1 filter toggle x 2 variable choices x 1 model
	if body.Pipelines != 4 || body.FilterFactors != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestCountRejectsUnknownColumn(t *testing.T) {
	h := newTestServer(t)
	spec := `{"filters": ["bogus_col > 1"], "models": [{"name": "m", "template": "accuracy ~ age"}]}`
	rec := postJSON(t, h, "/api/count", spec)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "bogus_col") {
		t.Errorf("error should name the column: %s", rec.Body)
	}
}

func TestCountRejectsBadJSON(t *testing.T) {
	h := newTestServer(t)
	rec := postJSON(t, h, "/api/count", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGrid(t *testing.T) {
	h := newTestServer(t)
	rec := postJSON(t, h, "/api/grid", studySpec)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		Hash      string `json:"hash"`
		Pipelines []struct {
			ID    int    `json:"id"`
			Model string `json:"model"`
		} `json:"pipelines"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Hash == "" {
		t.Error("grid hash missing")
	}
	if len(body.Pipelines) != 4 {
		t.Fatalf("pipelines = %d, want 4", len(body.Pipelines))
	}
	for i, p := range body.Pipelines {
		if p.ID != i+1 {
			t.Errorf("pipeline %d has ID %d", i, p.ID)
		}
		if !strings.HasPrefix(p.Model, "accuracy ~ mood_") {
			t.Errorf("model code = %q", p.Model)
		}
	}
}

func TestRun(t *testing.T) {
	h := newTestServer(t)
	rec := postJSON(t, h, "/api/run?mode=wide", studySpec)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		RunID  string `json:"run_id"`
		Failed int    `json:"failed"`
		Rows   []struct {
			PipelineID int               `json:"pipeline_id"`
			Parameter  string            `json:"parameter"`
			Decisions  map[string]string `json:"decisions"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID == "" {
		t.Error("run id missing")
	}
	if body.Failed != 0 {
		t.Errorf("failed = %d, want 0", body.Failed)
	}
	// 4 pipelines x 2 parameters each
	if len(body.Rows) != 8 {
		t.Fatalf("rows = %d, want 8", len(body.Rows))
	}
	for _, row := range body.Rows {
		if row.Decisions["iv"] == "" {
			t.Errorf("row misses variable decision: %+v", row)
		}
	}
}
