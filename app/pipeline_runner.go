package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"multiverse/domain/blueprint"
	"multiverse/domain/core"
	"multiverse/domain/frame"
	"multiverse/domain/grid"
	"multiverse/domain/result"
	"multiverse/internal"
)

// RunOptions configures one multiverse execution
type RunOptions struct {
	// Workers bounds how many pipelines execute concurrently.
	// Zero means one worker per CPU.
	Workers int
	// FitTimeout is the wall-clock budget for a single model fit.
	// Zero disables the budget.
	FitTimeout time.Duration
}

// RunReport is the outcome of executing a full grid
type RunReport struct {
	RunID    core.RunID      `json:"run_id"`
	Manifest Manifest        `json:"manifest"`
	Records  []result.Record `json:"records"`
	Failed   int             `json:"failed"`
}

// RunMultiverse executes every resolved pipeline of the grid against the
// blueprint's dataset. Pipelines are independent: each works on its own
// filtered copy of the shared read-only frame, so the pool needs no locking.
// Every pipeline yields exactly one record, failed or not, and records come
// back sorted by pipeline ID no matter the completion order. Cancelling ctx
// stops the batch between pipelines and returns the context error.
func (m *Multiverse) RunMultiverse(ctx context.Context, g *grid.Grid, opts RunOptions) (*RunReport, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	started := time.Now()
	data := g.Blueprint().Data()
	rels := g.Blueprint().ReliabilityGroups()

	internal.DefaultLogger.Info("multiverse run: %d pipelines, %d workers", g.Len(), workers)

	sem := semaphore.NewWeighted(int64(workers))
	records := make([]result.Record, g.Len())
	var wg sync.WaitGroup

	var cancelErr error
	for i := range g.Pipelines {
		// Cooperative cancellation point between units of work.
		if err := sem.Acquire(ctx, 1); err != nil {
			cancelErr = err
			break
		}
		wg.Add(1)
		go func(p grid.ResolvedPipeline, slot *result.Record) {
			defer wg.Done()
			defer sem.Release(1)
			*slot = m.execute(ctx, p, data, rels, opts)
		}(g.Pipelines[i], &records[i])
	}
	wg.Wait()

	if cancelErr != nil {
		return nil, fmt.Errorf("multiverse run cancelled: %w", cancelErr)
	}

	failed := 0
	for _, rec := range records {
		if rec.Failed() {
			failed++
		}
	}

	runID := core.NewRunID()
	report := &RunReport{
		RunID:    runID,
		Manifest: NewManifest(runID, g, data, started, time.Now()),
		Records:  records,
		Failed:   failed,
	}
	internal.DefaultLogger.Info("multiverse run %s: %d ok, %d failed in %s",
		runID, len(records)-failed, failed, time.Since(started))
	return report, nil
}

// execute runs one resolved pipeline. Stage failures are contained here:
// they come back as a failed record and never abort the batch.
func (m *Multiverse) execute(ctx context.Context, p grid.ResolvedPipeline, data *frame.Frame, rels []blueprint.DecisionGroup, opts RunOptions) result.Record {
	working, err := m.applyFilters(p, data)
	if err != nil {
		return result.NewFailure(p.ID, string(grid.StageFilter), err, 0)
	}
	filtered := working.Rows()

	rec := result.Record{
		PipelineID:   p.ID,
		Status:       result.StatusOK,
		FilteredRows: filtered,
	}

	// Reliabilities see the filter decisions but not preprocessing.
	for _, rel := range rels {
		stat, err := cronbachAlpha(rel.Name, rel.Columns, working)
		if err != nil {
			return result.NewFailure(p.ID, string(grid.StageReliability), err, filtered)
		}
		rec.Reliabilities = append(rec.Reliabilities, stat)
	}

	working, err = m.expr.Transform(p.PreprocessCode, working)
	if err != nil {
		return result.NewFailure(p.ID, string(grid.StagePreprocess), err, filtered)
	}

	if p.ModelCode != "" {
		fit, err := m.fitWithBudget(ctx, working, p.ModelCode, opts.FitTimeout)
		if err != nil {
			return result.NewFailure(p.ID, string(grid.StageModel), err, filtered)
		}
		rec.Fit = fit
	}

	if p.PostprocessCode != "" {
		if rec.Fit == nil {
			err := fmt.Errorf("postprocess %q needs a fitted model but no model was registered", p.PostprocessName)
			return result.NewFailure(p.ID, string(grid.StagePostprocess), err, filtered)
		}
		vals, err := m.expr.EvalFit(p.PostprocessCode, rec.Fit)
		if err != nil {
			return result.NewFailure(p.ID, string(grid.StagePostprocess), err, filtered)
		}
		rec.Post = map[string][]float64{p.PostprocessName: vals}
	}

	return rec
}

// applyFilters intersects the masks of every applied predicate. Each mask is
// computed against the source frame; the predicates commute, so order does
// not matter.
func (m *Multiverse) applyFilters(p grid.ResolvedPipeline, data *frame.Frame) (*frame.Frame, error) {
	if len(p.Filters) == 0 {
		return data, nil
	}

	combined := make([]bool, data.Rows())
	for i := range combined {
		combined[i] = true
	}
	for _, pred := range p.Filters {
		mask, err := m.expr.Mask(pred, data)
		if err != nil {
			return nil, err
		}
		for i := range combined {
			combined[i] = combined[i] && mask[i]
		}
	}
	return data.Select(combined)
}

// fitWithBudget runs the fitter under the configured wall-clock budget. The
// fit runs in its own goroutine so a fitter that ignores ctx still cannot
// hang the batch; the abandoned goroutine exits when the fitter returns.
func (m *Multiverse) fitWithBudget(ctx context.Context, data *frame.Frame, formula string, budget time.Duration) (*result.ModelFit, error) {
	fitCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	type fitOut struct {
		fit *result.ModelFit
		err error
	}
	done := make(chan fitOut, 1)
	go func() {
		fit, err := m.fitter.Fit(fitCtx, data, formula)
		done <- fitOut{fit: fit, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", core.ErrFitTimeout, budget)
		}
		return out.fit, out.err
	case <-fitCtx.Done():
		if errors.Is(fitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", core.ErrFitTimeout, budget)
		}
		return nil, fitCtx.Err()
	}
}
