package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"multiverse/adapters/hclexpr"
	"multiverse/adapters/ols"
	"multiverse/domain/blueprint"
	"multiverse/domain/core"
	"multiverse/domain/frame"
	"multiverse/domain/result"
)

func runnerData(t *testing.T) *frame.Frame {
	t.Helper()

	n := 20
	x := make([]float64, n)
	y := make([]float64, n)
	m1 := make([]float64, n)
	m2 := make([]float64, n)
	m3 := make([]float64, n)
	cond := make([]string, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i + 1)
		noise := 0.1
		if i%2 == 0 {
			noise = -0.1
		}
		y[i] = 3 + 2*x[i] + noise
		base := float64(i%7) + 1
		m1[i] = base + 0.1
		m2[i] = base - 0.2
		m3[i] = base + 0.3
		if i < n/2 {
			cond[i] = "control"
		} else {
			cond[i] = "treatment"
		}
	}

	data := frame.New()
	var err error
	for _, col := range []struct {
		name string
		vals []float64
	}{
		{"x", x}, {"y", y}, {"mood_1", m1}, {"mood_2", m2}, {"mood_3", m3},
	} {
		data, err = data.WithNumeric(col.name, col.vals)
		if err != nil {
			t.Fatalf("build column %s: %v", col.name, err)
		}
	}
	data, err = data.WithCategorical("condition", cond)
	if err != nil {
		t.Fatalf("build condition column: %v", err)
	}
	return data
}

func newTestService() *Multiverse {
	return NewMultiverse(hclexpr.New(), ols.NewFitter())
}

func TestRunMultiverseDenseRecords(t *testing.T) {
	svc := newTestService()
	bp := blueprint.New(runnerData(t)).
		AddFilters("x > 5").
		AddVariables("iv", "x").
		AddModel("linear", "y ~ {iv}").
		AddReliabilities("mood", "mood_*")

	g, err := svc.Expand(bp)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 pipelines, got %d", g.Len())
	}

	report, err := svc.RunMultiverse(context.Background(), g, RunOptions{Workers: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Records) != g.Len() {
		t.Fatalf("expected %d records, got %d", g.Len(), len(report.Records))
	}
	if report.Failed != 0 {
		t.Fatalf("expected no failures, got %d", report.Failed)
	}
	if report.Manifest.Pipelines != g.Len() {
		t.Errorf("manifest pipeline count = %d, want %d", report.Manifest.Pipelines, g.Len())
	}

	sawFiltered := false
	for i, rec := range report.Records {
		if int(rec.PipelineID) != i+1 {
			t.Errorf("record %d has pipeline ID %d, want %d", i, rec.PipelineID, i+1)
		}
		if rec.Failed() {
			t.Errorf("pipeline %d failed at %s: %s", rec.PipelineID, rec.FailedStage, rec.Err)
			continue
		}
		if rec.Fit == nil {
			t.Errorf("pipeline %d has no fit", rec.PipelineID)
			continue
		}
		if len(rec.Reliabilities) != 1 {
			t.Errorf("pipeline %d reliabilities = %d, want 1", rec.PipelineID, len(rec.Reliabilities))
		} else {
			rel := rec.Reliabilities[0]
			if rel.Group != "mood" || rel.Items != 3 {
				t.Errorf("reliability = %+v, want mood over 3 items", rel)
			}
			if rel.Alpha < 0.9 {
				t.Errorf("near-duplicate items should have high alpha, got %f", rel.Alpha)
			}
		}
		if rec.FilteredRows == 15 {
			sawFiltered = true
		}
	}
	if !sawFiltered {
		t.Error("expected one pipeline with 15 rows after applying x > 5")
	}
}

func TestRunMultiverseFailureIsolation(t *testing.T) {
	svc := newTestService()
	bp := blueprint.New(runnerData(t)).
		AddModel("good", "y ~ x").
		AddModel("bad", "y ~ missing_col")

	g, err := svc.Expand(bp)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	report, err := svc.RunMultiverse(context.Background(), g, RunOptions{Workers: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected exactly 1 failed pipeline, got %d", report.Failed)
	}

	var ok, failed *result.Record
	for i := range report.Records {
		if report.Records[i].Failed() {
			failed = &report.Records[i]
		} else {
			ok = &report.Records[i]
		}
	}
	if ok == nil || failed == nil {
		t.Fatal("expected one ok and one failed record")
	}
	if ok.Fit == nil {
		t.Error("surviving pipeline should carry a fit")
	}
	if failed.FailedStage != "model" {
		t.Errorf("failed stage = %q, want model", failed.FailedStage)
	}
	if !strings.Contains(failed.Err, "missing_col") {
		t.Errorf("failure message should name the missing column, got %q", failed.Err)
	}
}

func TestRunMultiversePostprocess(t *testing.T) {
	svc := newTestService()
	bp := blueprint.New(runnerData(t)).
		AddModel("linear", "y ~ x").
		AddPostprocess("resid_spread", "sd(residuals)")

	g, err := svc.Expand(bp)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	report, err := svc.RunMultiverse(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rec := report.Records[0]
	if rec.Failed() {
		t.Fatalf("pipeline failed at %s: %s", rec.FailedStage, rec.Err)
	}
	vals, found := rec.Post["resid_spread"]
	if !found || len(vals) != 1 {
		t.Fatalf("expected one postprocess value, got %v", rec.Post)
	}
	if vals[0] <= 0 || vals[0] > 1 {
		t.Errorf("residual sd = %f, want small positive value", vals[0])
	}
}

func TestRunMultiverseCancellation(t *testing.T) {
	svc := newTestService()
	bp := blueprint.New(runnerData(t)).AddModel("linear", "y ~ x")
	g, err := svc.Expand(bp)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.RunMultiverse(ctx, g, RunOptions{Workers: 1})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("unexpected error: %v", err)
	}
}

// slowFitter blocks until its context expires, standing in for a model
// whose estimation never converges.
type slowFitter struct{}

func (slowFitter) Fit(ctx context.Context, data *frame.Frame, formula string) (*result.ModelFit, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunMultiverseFitTimeout(t *testing.T) {
	svc := NewMultiverse(hclexpr.New(), slowFitter{})
	bp := blueprint.New(runnerData(t)).AddModel("linear", "y ~ x")
	g, err := svc.Expand(bp)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	report, err := svc.RunMultiverse(context.Background(), g, RunOptions{
		Workers:    1,
		FitTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected the timed-out pipeline to fail, got %d failures", report.Failed)
	}
	rec := report.Records[0]
	if rec.FailedStage != "model" {
		t.Errorf("failed stage = %q, want model", rec.FailedStage)
	}
	if !strings.Contains(rec.Err, core.ErrFitTimeout.Error()) {
		t.Errorf("failure should mention the fit budget, got %q", rec.Err)
	}
}

func TestFilterExclusionSummary(t *testing.T) {
	svc := newTestService()
	bp := blueprint.New(runnerData(t)).
		AddFilters("x > 10", "condition == \"treatment\"").
		AddModel("linear", "y ~ x")

	summary, err := svc.FilterExclusionSummary(bp)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected 2 exclusion entries, got %d", len(summary))
	}
	for _, s := range summary {
		if s.Removed != 10 || s.Kept != 10 {
			t.Errorf("%s: removed=%d kept=%d, want 10/10", s.Predicate, s.Removed, s.Kept)
		}
	}
}
