package app

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/montanaflynn/stats"

	"multiverse/domain/grid"
	"multiverse/domain/result"
)

// Reveal flattens the fitted-model artifact of every record into a tidy
// table with one row per (pipeline, parameter). The selector restricts which
// parameters unpack: a comma-separated list of glob patterns over parameter
// names, "" meaning all. Failed records yield one row with NaN statistics and
// a failed status flag so downstream aggregation can count or drop them
// deliberately; they are never dropped by the selector. In wide mode each row
// carries the full decision map; in long mode every statistic is replicated
// once per (group, choice) pair.
func Reveal(g *grid.Grid, records []result.Record, mode result.UnpackMode, selector string) ([]result.Row, error) {
	var rows []result.Row
	for _, rec := range records {
		p, err := g.Pipeline(rec.PipelineID)
		if err != nil {
			return nil, err
		}

		base := result.Row{
			PipelineID: rec.PipelineID,
			Kind:       result.RowParameter,
			Status:     rec.Status,
		}

		if rec.Failed() || rec.Fit == nil {
			row := base
			row.Estimate, row.StdErr, row.PValue = math.NaN(), math.NaN(), math.NaN()
			row.CILow, row.CIHigh = math.NaN(), math.NaN()
			rows = appendWithDecisions(rows, row, p, mode)
			continue
		}

		for _, param := range rec.Fit.Params {
			match, err := matchParameter(selector, param.Name)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
			row := base
			row.Parameter = param.Name
			row.Estimate = param.Estimate
			row.StdErr = param.StdErr
			row.PValue = param.PValue
			row.CILow = param.CILow
			row.CIHigh = param.CIHigh
			rows = appendWithDecisions(rows, row, p, mode)
		}
	}
	return rows, nil
}

// RevealPost unpacks postprocess outputs into rows keyed by
// (pipeline, postprocess name); vector outputs get an indexed name per entry.
func RevealPost(g *grid.Grid, records []result.Record, mode result.UnpackMode) ([]result.Row, error) {
	var rows []result.Row
	for _, rec := range records {
		p, err := g.Pipeline(rec.PipelineID)
		if err != nil {
			return nil, err
		}

		if rec.Failed() {
			row := result.Row{
				PipelineID: rec.PipelineID,
				Kind:       result.RowPostprocess,
				Status:     rec.Status,
				Estimate:   math.NaN(),
				StdErr:     math.NaN(),
				PValue:     math.NaN(),
				CILow:      math.NaN(),
				CIHigh:     math.NaN(),
			}
			rows = appendWithDecisions(rows, row, p, mode)
			continue
		}

		for name, vals := range rec.Post {
			for i, v := range vals {
				row := result.Row{
					PipelineID: rec.PipelineID,
					Kind:       result.RowPostprocess,
					Parameter:  name,
					Status:     rec.Status,
					Estimate:   v,
				}
				if len(vals) > 1 {
					row.Parameter = fmt.Sprintf("%s[%d]", name, i+1)
				}
				rows = appendWithDecisions(rows, row, p, mode)
			}
		}
	}
	return rows, nil
}

// RevealReliabilities unpacks the auxiliary internal-consistency outputs
func RevealReliabilities(g *grid.Grid, records []result.Record, mode result.UnpackMode) ([]result.Row, error) {
	var rows []result.Row
	for _, rec := range records {
		p, err := g.Pipeline(rec.PipelineID)
		if err != nil {
			return nil, err
		}
		for _, rel := range rec.Reliabilities {
			row := result.Row{
				PipelineID: rec.PipelineID,
				Kind:       result.RowReliability,
				Parameter:  rel.Group,
				Status:     rec.Status,
				Estimate:   rel.Alpha,
			}
			rows = appendWithDecisions(rows, row, p, mode)
		}
	}
	return rows, nil
}

// matchParameter checks a parameter name against the comma-separated glob
// selector; an empty selector matches everything.
func matchParameter(selector, name string) (bool, error) {
	if selector == "" {
		return true, nil
	}
	for _, pattern := range strings.Split(selector, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		ok, err := path.Match(pattern, name)
		if err != nil {
			return false, fmt.Errorf("bad parameter selector %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func appendWithDecisions(rows []result.Row, row result.Row, p grid.ResolvedPipeline, mode result.UnpackMode) []result.Row {
	if mode == result.Long {
		for _, choice := range p.Choices {
			r := row
			r.Group = choice.Group
			r.Choice = choice.AlternativeID
			rows = append(rows, r)
		}
		return rows
	}

	row.Decisions = make(map[string]string, len(p.Choices))
	for _, choice := range p.Choices {
		row.Decisions[choice.Group] = choice.AlternativeID
	}
	return append(rows, row)
}

// Condense applies a reduction to one statistic column, grouped by
// parameter. NaN entries from failed pipelines are skipped; a group appears
// in the output only when it appears in the input.
func Condense(rows []result.Row, column string, reduce result.Reduction) ([]result.Condensed, error) {
	order := []string{}
	grouped := map[string][]float64{}
	for _, row := range rows {
		v, err := columnValue(row, column)
		if err != nil {
			return nil, err
		}
		if _, seen := grouped[row.Parameter]; !seen {
			order = append(order, row.Parameter)
			grouped[row.Parameter] = nil
		}
		if !math.IsNaN(v) {
			grouped[row.Parameter] = append(grouped[row.Parameter], v)
		}
	}

	out := make([]result.Condensed, 0, len(order))
	for _, param := range order {
		vals := grouped[param]
		if len(vals) == 0 {
			out = append(out, result.Condensed{Parameter: param, Value: math.NaN()})
			continue
		}
		v, err := reduce(vals)
		if err != nil {
			return nil, fmt.Errorf("condense %q over %q: %w", param, column, err)
		}
		out = append(out, result.Condensed{Parameter: param, Value: v, N: len(vals)})
	}
	return out, nil
}

func columnValue(row result.Row, column string) (float64, error) {
	switch column {
	case "estimate":
		return row.Estimate, nil
	case "std_err":
		return row.StdErr, nil
	case "p_value":
		return row.PValue, nil
	case "ci_low":
		return row.CILow, nil
	case "ci_high":
		return row.CIHigh, nil
	}
	return 0, fmt.Errorf("unknown result column %q", column)
}

// Built-in reductions for Condense.

// Median reduces to the group median
func Median() result.Reduction {
	return func(values []float64) (float64, error) { return stats.Median(values) }
}

// MeanOf reduces to the group mean
func MeanOf() result.Reduction {
	return func(values []float64) (float64, error) { return stats.Mean(values) }
}

// PropBelow reduces to the proportion of values under a threshold,
// e.g. the share of p-values below .05 across the multiverse.
func PropBelow(threshold float64) result.Reduction {
	return func(values []float64) (float64, error) {
		if len(values) == 0 {
			return 0, fmt.Errorf("empty group")
		}
		below := 0
		for _, v := range values {
			if v < threshold {
				below++
			}
		}
		return float64(below) / float64(len(values)), nil
	}
}
