package hclexpr

import (
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"multiverse/domain/core"
	"multiverse/domain/frame"
)

// Engine evaluates pipeline code strings as HCL expressions. Filter
// predicates are evaluated per row against scalar column values; preprocess
// bodies and postprocess expressions are evaluated vectorized, with whole
// columns bound as number lists.
type Engine struct {
	funcs map[string]function.Function
}

// New creates an expression engine with the built-in function set
func New() *Engine {
	return &Engine{funcs: builtinFunctions()}
}

func parseExpr(src string) (hclsyntax.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "expr.hcl", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: parse %q: %s", core.ErrValidation, src, diags.Error())
	}
	return expr, nil
}

// Columns returns the column names an expression references, sorted and
// deduplicated, without evaluating it.
func (e *Engine) Columns(src string) ([]string, error) {
	expr, err := parseExpr(src)
	if err != nil {
		return nil, err
	}
	return rootNames(expr), nil
}

func rootNames(expr hclsyntax.Expression) []string {
	seen := map[string]bool{}
	var out []string
	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Mask evaluates a boolean predicate once per row. Rows with a missing value
// in any referenced numeric column fail the predicate. A reference to a
// column absent from the frame is an error naming that column.
func (e *Engine) Mask(src string, data *frame.Frame) ([]bool, error) {
	expr, err := parseExpr(src)
	if err != nil {
		return nil, err
	}

	refs := rootNames(expr)
	for _, name := range refs {
		if !data.Has(name) {
			return nil, core.NewUnknownColumnError(name, fmt.Sprintf("filter %q", src))
		}
	}

	mask := make([]bool, data.Rows())
	evalCtx := &hcl.EvalContext{
		Variables: make(map[string]cty.Value, len(refs)),
		Functions: e.funcs,
	}

	for i := range mask {
		missing := false
		for _, name := range refs {
			col, _ := data.Column(name)
			if col.Kind == frame.Numeric {
				v := col.Floats[i]
				if math.IsNaN(v) {
					missing = true
					break
				}
				evalCtx.Variables[name] = cty.NumberFloatVal(v)
			} else {
				evalCtx.Variables[name] = cty.StringVal(col.Labels[i])
			}
		}
		if missing {
			mask[i] = false
			continue
		}

		v, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluate filter %q: %s", src, diags.Error())
		}
		if v.IsNull() || !v.Type().Equals(cty.Bool) {
			return nil, fmt.Errorf("filter %q did not produce a boolean", src)
		}
		mask[i] = v.True()
	}
	return mask, nil
}
