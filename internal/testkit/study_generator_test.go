package testkit

import (
	"math"
	"testing"
)

func TestGenerateStudyShape(t *testing.T) {
	cfg := DefaultStudyConfig()
	data, err := NewStudyDataGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if data.Rows() != cfg.Participants {
		t.Errorf("rows = %d, want %d", data.Rows(), cfg.Participants)
	}
	// condition + 4 mood items + accuracy, rt, age, certainty
	if got := len(data.Names()); got != 9 {
		t.Errorf("columns = %d, want 9", got)
	}
	for _, name := range []string{"condition", "mood_1", "mood_4", "accuracy", "rt", "age", "certainty"} {
		if !data.Has(name) {
			t.Errorf("missing column %q", name)
		}
	}
}

func TestGenerateStudyDeterministic(t *testing.T) {
	cfg := DefaultStudyConfig()
	a, err := NewStudyDataGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := NewStudyDataGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	av, _ := a.Numeric("accuracy")
	bv, _ := b.Numeric("accuracy")
	for i := range av {
		if av[i] != bv[i] && !(math.IsNaN(av[i]) && math.IsNaN(bv[i])) {
			t.Fatalf("row %d differs across same-seed runs: %f vs %f", i, av[i], bv[i])
		}
	}
}

func TestGenerateStudyEffect(t *testing.T) {
	cfg := DefaultStudyConfig()
	cfg.Participants = 2000
	cfg.MissingRate = 0
	data, err := NewStudyDataGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	cond, _ := data.Labels("condition")
	acc, _ := data.Numeric("accuracy")
	var sumT, sumC float64
	var nT, nC int
	for i := range cond {
		if cond[i] == "treatment" {
			sumT += acc[i]
			nT++
		} else {
			sumC += acc[i]
			nC++
		}
	}
	diff := sumT/float64(nT) - sumC/float64(nC)
	want := cfg.Effect * 0.1
	if math.Abs(diff-want) > 0.02 {
		t.Errorf("treatment effect = %f, want about %f", diff, want)
	}
}

func TestGenerateStudyValidation(t *testing.T) {
	cfg := DefaultStudyConfig()
	cfg.Participants = 1
	if _, err := NewStudyDataGenerator(cfg).Generate(); err == nil {
		t.Error("expected error for too few participants")
	}

	cfg = DefaultStudyConfig()
	cfg.MoodItems = 0
	if _, err := NewStudyDataGenerator(cfg).Generate(); err == nil {
		t.Error("expected error for zero mood items")
	}
}
