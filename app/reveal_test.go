package app

import (
	"context"
	"math"
	"testing"

	"multiverse/domain/blueprint"
	"multiverse/domain/grid"
	"multiverse/domain/result"
)

func revealFixture(t *testing.T) (*RunReport, *grid.Grid) {
	t.Helper()
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
	report, err := svc.RunMultiverse(context.Background(), g, RunOptions{Workers: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return report, g
}

func TestRevealWide(t *testing.T) {
	report, g := revealFixture(t)

	rows, err := Reveal(g, report.Records, result.Wide, "")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}

	// 2 pipelines x 2 parameters (intercept, slope)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Kind != result.RowParameter {
			t.Errorf("row kind = %q, want parameter", row.Kind)
		}
		if row.Status != result.StatusOK {
			t.Errorf("pipeline %d row marked %q", row.PipelineID, row.Status)
		}
		if row.Decisions == nil {
			t.Fatal("wide rows must carry the decision map")
		}
		choice, found := row.Decisions["x > 5"]
		if !found {
			t.Errorf("decision map misses the filter group: %v", row.Decisions)
		}
		if choice != "apply" && choice != "skip" {
			t.Errorf("unexpected filter choice %q", choice)
		}
		if row.Decisions["iv"] != "x" {
			t.Errorf("variable decision = %q, want x", row.Decisions["iv"])
		}
	}

	slopes := 0
	for _, row := range rows {
		if row.Parameter == "x" {
			slopes++
			if math.Abs(row.Estimate-2) > 0.05 {
				t.Errorf("slope estimate = %f, want about 2", row.Estimate)
			}
			if row.PValue > 1e-6 {
				t.Errorf("slope p-value = %g, want tiny", row.PValue)
			}
		}
	}
	if slopes != 2 {
		t.Errorf("expected a slope row per pipeline, got %d", slopes)
	}
}

func TestRevealLong(t *testing.T) {
	report, g := revealFixture(t)

	rows, err := Reveal(g, report.Records, result.Long, "")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}

	// 2 pipelines x 2 parameters x 3 decision groups
	if len(rows) != 12 {
		t.Fatalf("expected 12 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Decisions != nil {
			t.Error("long rows must not carry the decision map")
		}
		if row.Group == "" || row.Choice == "" {
			t.Errorf("long row misses group/choice: %+v", row)
		}
	}
}

func TestRevealParameterSelector(t *testing.T) {
	report, g := revealFixture(t)

	rows, err := Reveal(g, report.Records, result.Wide, "x, mood_*")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	// the intercept is selected away, leaving one slope row per pipeline
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Parameter != "x" {
			t.Errorf("unexpected parameter %q", row.Parameter)
		}
	}

	if _, err := Reveal(g, report.Records, result.Wide, "[bad"); err == nil {
		t.Error("expected error for a malformed selector pattern")
	}
}

func TestRevealFailedPipeline(t *testing.T) {
	svc := newTestService()
	bp := blueprint.New(runnerData(t)).
		AddModel("good", "y ~ x").
		AddModel("bad", "y ~ missing_col")
	g, err := svc.Expand(bp)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	report, err := svc.RunMultiverse(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rows, err := Reveal(g, report.Records, result.Wide, "")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}

	failedRows := 0
	for _, row := range rows {
		if row.Status != result.StatusFailed {
			continue
		}
		failedRows++
		if !math.IsNaN(row.Estimate) || !math.IsNaN(row.PValue) {
			t.Errorf("failed row should carry NaN statistics, got %+v", row)
		}
		if row.Parameter != "" {
			t.Errorf("failed row should have no parameter, got %q", row.Parameter)
		}
	}
	if failedRows != 1 {
		t.Errorf("expected exactly one failed placeholder row, got %d", failedRows)
	}
}

func TestRevealReliabilities(t *testing.T) {
	report, g := revealFixture(t)

	rows, err := RevealReliabilities(g, report.Records, result.Wide)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected one reliability row per pipeline, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Kind != result.RowReliability || row.Parameter != "mood" {
			t.Errorf("unexpected reliability row %+v", row)
		}
		if row.Estimate < 0.9 {
			t.Errorf("alpha = %f, want high", row.Estimate)
		}
	}
}

func TestRevealPost(t *testing.T) {
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

	rows, err := RevealPost(g, report.Records, result.Wide)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one postprocess row, got %d", len(rows))
	}
	if rows[0].Parameter != "resid_spread" || rows[0].Kind != result.RowPostprocess {
		t.Errorf("unexpected row %+v", rows[0])
	}
	if rows[0].Estimate <= 0 {
		t.Errorf("residual spread = %f, want positive", rows[0].Estimate)
	}
}

func TestCondense(t *testing.T) {
	rows := []result.Row{
		{Parameter: "x", Estimate: 1.0, PValue: 0.01},
		{Parameter: "x", Estimate: 3.0, PValue: 0.20},
		{Parameter: "x", Estimate: 2.0, PValue: 0.03},
		{Parameter: "(Intercept)", Estimate: 10.0, PValue: 0.5},
		{Parameter: "x", Estimate: math.NaN(), PValue: math.NaN(), Status: result.StatusFailed},
	}

	t.Run("median estimate per parameter", func(t *testing.T) {
		out, err := Condense(rows, "estimate", Median())
		if err != nil {
			t.Fatalf("condense: %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(out))
		}
		if out[0].Parameter != "x" || out[0].Value != 2.0 || out[0].N != 3 {
			t.Errorf("x group = %+v, want median 2 over 3 values", out[0])
		}
		if out[1].Parameter != "(Intercept)" || out[1].Value != 10.0 {
			t.Errorf("intercept group = %+v", out[1])
		}
	})

	t.Run("proportion of significant p-values", func(t *testing.T) {
		out, err := Condense(rows, "p_value", PropBelow(0.05))
		if err != nil {
			t.Fatalf("condense: %v", err)
		}
		var got float64
		for _, c := range out {
			if c.Parameter == "x" {
				got = c.Value
			}
		}
		if math.Abs(got-2.0/3.0) > 1e-12 {
			t.Errorf("prop below .05 = %f, want 2/3", got)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		if _, err := Condense(rows, "t_stat", MeanOf()); err == nil {
			t.Error("expected an error for an unsupported column")
		}
	})

	t.Run("all NaN group", func(t *testing.T) {
		nanRows := []result.Row{{Parameter: "x", Estimate: math.NaN()}}
		out, err := Condense(nanRows, "estimate", Median())
		if err != nil {
			t.Fatalf("condense: %v", err)
		}
		if len(out) != 1 || !math.IsNaN(out[0].Value) || out[0].N != 0 {
			t.Errorf("all-NaN group = %+v, want NaN value with N=0", out[0])
		}
	})
}
