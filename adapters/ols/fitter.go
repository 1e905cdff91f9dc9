package ols

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"multiverse/domain/core"
	"multiverse/domain/frame"
	"multiverse/domain/result"
)

// Fitter estimates ordinary least squares models from formula strings. It is
// the reference ports.ModelFitter; the engine never looks inside it.
// Categorical predictors are treatment-coded against their first level in
// sorted order; rows with a missing value in any referenced numeric column
// are dropped before estimation.
type Fitter struct {
	ConfLevel float64 // confidence level for parameter intervals
}

// NewFitter creates a fitter with 95% confidence intervals
func NewFitter() *Fitter {
	return &Fitter{ConfLevel: 0.95}
}

// NewFitterWithConfidence creates a fitter with a custom interval level
func NewFitterWithConfidence(level float64) *Fitter {
	if level <= 0 || level >= 1 {
		level = 0.95
	}
	return &Fitter{ConfLevel: level}
}

// predictor is one expanded design column (a numeric column or a dummy)
type predictor struct {
	name string
	vals []float64
}

// Fit estimates the model described by formula against data
func (f *Fitter) Fit(ctx context.Context, data *frame.Frame, formula string) (*result.ModelFit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := ParseFormula(formula)
	if err != nil {
		return nil, err
	}

	var numericRefs []string
	for _, name := range parsed.Columns() {
		col, ok := data.Column(name)
		if !ok {
			return nil, core.NewUnknownColumnError(name, fmt.Sprintf("model formula %q", formula))
		}
		if col.Kind == frame.Numeric {
			numericRefs = append(numericRefs, name)
		}
	}

	data, err = data.DropMissing(numericRefs...)
	if err != nil {
		return nil, err
	}

	y, ok := data.Numeric(parsed.Response)
	if !ok {
		return nil, fmt.Errorf("%w: response %q is not numeric", core.ErrValidation, parsed.Response)
	}

	design, names, err := buildDesign(data, parsed)
	if err != nil {
		return nil, err
	}

	n := len(y)
	p := len(names)
	if n <= p {
		return nil, fmt.Errorf("cannot fit %q: %d rows for %d parameters", formula, n, p)
	}

	X := mat.NewDense(n, p, nil)
	for j, col := range design {
		for i, v := range col {
			X.Set(i, j, v)
		}
	}
	Y := mat.NewVecDense(n, y)

	var qr mat.QR
	qr.Factorize(X)
	beta := mat.NewVecDense(p, nil)
	if err := qr.SolveVecTo(beta, false, Y); err != nil {
		return nil, fmt.Errorf("design matrix for %q is singular: %w", formula, err)
	}

	// Residuals and fit diagnostics.
	fitted := make([]float64, n)
	residuals := make([]float64, n)
	var rss, tss, ySum float64
	for _, v := range y {
		ySum += v
	}
	yMean := ySum / float64(n)
	for i := 0; i < n; i++ {
		var pred float64
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * beta.AtVec(j)
		}
		fitted[i] = pred
		residuals[i] = y[i] - pred
		rss += residuals[i] * residuals[i]
		tss += (y[i] - yMean) * (y[i] - yMean)
	}

	df := float64(n - p)
	sigma2 := rss / df

	// Parameter covariance from (X'X)^-1.
	var xtx, cov mat.Dense
	xtx.Mul(X.T(), X)
	if err := cov.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("design matrix for %q is singular: %w", formula, err)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	tCrit := tDist.Quantile(1 - (1-f.ConfLevel)/2)

	params := make([]result.ParamStat, p)
	for j := 0; j < p; j++ {
		est := beta.AtVec(j)
		se := math.Sqrt(sigma2 * cov.At(j, j))
		tStat := est / se
		params[j] = result.ParamStat{
			Name:     names[j],
			Estimate: est,
			StdErr:   se,
			TStat:    tStat,
			PValue:   2 * tDist.CDF(-math.Abs(tStat)),
			CILow:    est - tCrit*se,
			CIHigh:   est + tCrit*se,
		}
	}

	r2 := 0.0
	if tss > 0 {
		r2 = 1 - rss/tss
	}

	return &result.ModelFit{
		Formula:   formula,
		Params:    params,
		Residuals: residuals,
		Fitted:    fitted,
		R2:        r2,
		AdjR2:     1 - (1-r2)*float64(n-1)/df,
		Sigma:     math.Sqrt(sigma2),
		N:         n,
	}, nil
}

// buildDesign expands formula terms into design columns: an intercept, then
// one column per numeric term component product, with categorical components
// treatment-coded.
func buildDesign(data *frame.Frame, parsed *Formula) ([][]float64, []string, error) {
	n := data.Rows()

	intercept := make([]float64, n)
	for i := range intercept {
		intercept[i] = 1
	}
	design := [][]float64{intercept}
	names := []string{"(Intercept)"}

	for _, term := range parsed.Terms {
		cols, err := expandTerm(data, term)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range cols {
			design = append(design, c.vals)
			names = append(names, c.name)
		}
	}
	return design, names, nil
}

// expandTerm produces the design columns of one term: the elementwise
// product over each combination of the component expansions.
func expandTerm(data *frame.Frame, term Term) ([]predictor, error) {
	parts := make([][]predictor, 0, len(term.Vars))
	for _, v := range term.Vars {
		expanded, err := expandVar(data, v)
		if err != nil {
			return nil, err
		}
		parts = append(parts, expanded)
	}

	out := parts[0]
	for _, next := range parts[1:] {
		crossed := make([]predictor, 0, len(out)*len(next))
		for _, a := range out {
			for _, b := range next {
				vals := make([]float64, len(a.vals))
				for i := range vals {
					vals[i] = a.vals[i] * b.vals[i]
				}
				crossed = append(crossed, predictor{name: a.name + ":" + b.name, vals: vals})
			}
		}
		out = crossed
	}
	return out, nil
}

// expandVar turns one variable into design columns: numeric columns pass
// through, categorical columns become dummies against the first sorted level.
func expandVar(data *frame.Frame, name string) ([]predictor, error) {
	col, ok := data.Column(name)
	if !ok {
		return nil, core.NewUnknownColumnError(name, "model term")
	}

	if col.Kind == frame.Numeric {
		return []predictor{{name: name, vals: col.Floats}}, nil
	}

	levelSet := map[string]bool{}
	for _, l := range col.Labels {
		levelSet[l] = true
	}
	levels := make([]string, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	if len(levels) < 2 {
		return nil, fmt.Errorf("categorical %q has a single level, cannot contrast", name)
	}

	out := make([]predictor, 0, len(levels)-1)
	for _, level := range levels[1:] {
		vals := make([]float64, len(col.Labels))
		for i, l := range col.Labels {
			if l == level {
				vals[i] = 1
			}
		}
		out = append(out, predictor{name: fmt.Sprintf("%s[%s]", name, level), vals: vals})
	}
	return out, nil
}
