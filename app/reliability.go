package app

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"multiverse/domain/frame"
	"multiverse/domain/result"
)

// cronbachAlpha computes the internal consistency of an item set on the
// filtered frame: alpha = k/(k-1) * (1 - sum(item variances)/total variance),
// over complete cases only.
func cronbachAlpha(group string, items []string, data *frame.Frame) (result.Reliability, error) {
	if len(items) < 2 {
		return result.Reliability{}, fmt.Errorf("reliability %q needs at least two items", group)
	}

	cols := make([][]float64, len(items))
	for i, name := range items {
		vals, ok := data.Numeric(name)
		if !ok {
			return result.Reliability{}, fmt.Errorf("reliability %q: item %q is not a numeric column", group, name)
		}
		cols[i] = vals
	}

	// Complete cases across all items.
	n := data.Rows()
	keep := make([]bool, n)
	kept := 0
	for r := 0; r < n; r++ {
		keep[r] = true
		for _, col := range cols {
			if math.IsNaN(col[r]) {
				keep[r] = false
				break
			}
		}
		if keep[r] {
			kept++
		}
	}
	if kept < 3 {
		return result.Reliability{}, fmt.Errorf("reliability %q: only %d complete rows", group, kept)
	}

	itemData := make([][]float64, len(cols))
	totals := make([]float64, 0, kept)
	for r := 0; r < n; r++ {
		if !keep[r] {
			continue
		}
		sum := 0.0
		for i, col := range cols {
			itemData[i] = append(itemData[i], col[r])
			sum += col[r]
		}
		totals = append(totals, sum)
	}

	var itemVarSum float64
	for _, item := range itemData {
		v, err := stats.SampleVariance(item)
		if err != nil {
			return result.Reliability{}, err
		}
		itemVarSum += v
	}
	totalVar, err := stats.SampleVariance(totals)
	if err != nil {
		return result.Reliability{}, err
	}
	if totalVar == 0 {
		return result.Reliability{}, fmt.Errorf("reliability %q: zero total-score variance", group)
	}

	k := float64(len(cols))
	alpha := (k / (k - 1)) * (1 - itemVarSum/totalVar)

	// Mean pairwise inter-item correlation, as a second consistency signal.
	var rSum float64
	var pairs int
	for i := 0; i < len(itemData); i++ {
		for j := i + 1; j < len(itemData); j++ {
			r, err := stats.Pearson(itemData[i], itemData[j])
			if err == nil && !math.IsNaN(r) {
				rSum += r
				pairs++
			}
		}
	}
	meanR := 0.0
	if pairs > 0 {
		meanR = rSum / float64(pairs)
	}

	return result.Reliability{
		Group:         group,
		Alpha:         alpha,
		Items:         len(cols),
		N:             kept,
		MeanInterItem: meanR,
	}, nil
}
