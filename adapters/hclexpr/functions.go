package hclexpr

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// floatsToList converts a float column to a cty number list. NaN entries
// become null elements, since cty numbers cannot carry NaN.
func floatsToList(vals []float64) cty.Value {
	if len(vals) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	elems := make([]cty.Value, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			elems[i] = cty.NullVal(cty.Number)
		} else {
			elems[i] = cty.NumberFloatVal(v)
		}
	}
	return cty.ListVal(elems)
}

// toFloats converts an evaluated cty value back to floats. Scalars broadcast
// to length n when n > 0 and come back as a single element otherwise; null
// list elements become NaN.
func toFloats(v cty.Value, n int) ([]float64, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("expression produced null")
	}

	if v.Type().Equals(cty.Number) {
		f, _ := v.AsBigFloat().Float64()
		if n <= 0 {
			return []float64{f}, nil
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = f
		}
		return out, nil
	}

	if !v.Type().IsListType() && !v.Type().IsTupleType() {
		return nil, fmt.Errorf("expression produced %s, want number or list of numbers", v.Type().FriendlyName())
	}

	elems := v.AsValueSlice()
	out := make([]float64, len(elems))
	for i, el := range elems {
		if el.IsNull() {
			out[i] = math.NaN()
			continue
		}
		if !el.Type().Equals(cty.Number) {
			return nil, fmt.Errorf("list element %d is %s, want number", i, el.Type().FriendlyName())
		}
		out[i], _ = el.AsBigFloat().Float64()
	}
	if n > 0 && len(out) != n {
		return nil, fmt.Errorf("expression produced %d values, frame has %d rows", len(out), n)
	}
	return out, nil
}

// complete drops NaN entries ahead of a column-level statistic
func complete(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// vectorFunc lifts an element transform over a number list, passing missing
// values through untouched.
func vectorFunc(fn func(x float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.List(cty.Number)}},
		Type:   function.StaticReturnType(cty.List(cty.Number)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			vals, err := toFloats(args[0], -1)
			if err != nil {
				return cty.NilVal, err
			}
			out := make([]float64, len(vals))
			for i, v := range vals {
				if math.IsNaN(v) {
					out[i] = v
					continue
				}
				out[i] = fn(v)
			}
			return floatsToList(out), nil
		},
	})
}

// columnFunc lifts a whole-column transform over a number list
func columnFunc(fn func(x []float64) ([]float64, error)) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.List(cty.Number)}},
		Type:   function.StaticReturnType(cty.List(cty.Number)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			vals, err := toFloats(args[0], -1)
			if err != nil {
				return cty.NilVal, err
			}
			out, err := fn(vals)
			if err != nil {
				return cty.NilVal, err
			}
			return floatsToList(out), nil
		},
	})
}

// reduceFunc lifts a column statistic into a list -> number function
func reduceFunc(fn func(x []float64) (float64, error)) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.List(cty.Number)}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			vals, err := toFloats(args[0], -1)
			if err != nil {
				return cty.NilVal, err
			}
			out, err := fn(complete(vals))
			if err != nil {
				return cty.NilVal, err
			}
			if math.IsNaN(out) {
				return cty.NullVal(cty.Number), nil
			}
			return cty.NumberFloatVal(out), nil
		},
	})
}

func builtinFunctions() map[string]function.Function {
	return map[string]function.Function{
		// column transforms
		"scale":  columnFunc(scaleColumn),
		"center": columnFunc(centerColumn),

		// elementwise transforms
		"log":   vectorFunc(math.Log),
		"log1p": vectorFunc(math.Log1p),
		"sqrt":  vectorFunc(math.Sqrt),
		"abs":   vectorFunc(math.Abs),
		"exp":   vectorFunc(math.Exp),

		// column statistics, for postprocess expressions
		"mean":     reduceFunc(func(x []float64) (float64, error) { return stats.Mean(x) }),
		"sd":       reduceFunc(func(x []float64) (float64, error) { return stats.StandardDeviationSample(x) }),
		"median":   reduceFunc(func(x []float64) (float64, error) { return stats.Median(x) }),
		"min":      reduceFunc(func(x []float64) (float64, error) { return stats.Min(x) }),
		"max":      reduceFunc(func(x []float64) (float64, error) { return stats.Max(x) }),
		"sum":      reduceFunc(func(x []float64) (float64, error) { return stats.Sum(x) }),
		"skewness": reduceFunc(func(x []float64) (float64, error) { return skewness(x), nil }),
		"kurtosis": reduceFunc(func(x []float64) (float64, error) { return kurtosis(x), nil }),
	}
}

func scaleColumn(vals []float64) ([]float64, error) {
	cc := complete(vals)
	mean, err := stats.Mean(cc)
	if err != nil {
		return nil, err
	}
	sd, err := stats.StandardDeviationSample(cc)
	if err != nil {
		return nil, err
	}
	if sd == 0 {
		return nil, fmt.Errorf("scale: column has zero variance")
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = (v - mean) / sd
	}
	return out, nil
}

func centerColumn(vals []float64) ([]float64, error) {
	cc := complete(vals)
	mean, err := stats.Mean(cc)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v - mean
	}
	return out, nil
}

// skewness computes the adjusted Fisher-Pearson coefficient
func skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	mean, _ := stats.Mean(data)
	sd, _ := stats.StandardDeviationSample(data)
	if sd == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubed := 0.0
	for _, x := range data {
		d := (x - mean) / sd
		sumCubed += d * d * d
	}
	return (sumCubed / n) * math.Sqrt(n*(n-1)) / (n - 2)
}

// kurtosis computes sample excess kurtosis (0 for a normal distribution)
func kurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}
	mean, _ := stats.Mean(data)
	sd, _ := stats.StandardDeviationSample(data)
	if sd == 0 {
		return 0
	}

	n := float64(len(data))
	sumFourth := 0.0
	for _, x := range data {
		d := (x - mean) / sd
		sumFourth += d * d * d * d
	}
	return sumFourth/n - 3.0
}
