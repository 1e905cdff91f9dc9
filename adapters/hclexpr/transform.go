package hclexpr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"multiverse/domain/core"
	"multiverse/domain/frame"
	"multiverse/domain/result"
)

// Transform evaluates a preprocess body of column assignments, e.g.
//
//	iv_z  = scale(mood_1)
//	noise = center(noise)
//
// Assignments run in declaration order and see columns produced by earlier
// assignments. The returned frame shares unmodified columns with the input.
func (e *Engine) Transform(code string, data *frame.Frame) (*frame.Frame, error) {
	if strings.TrimSpace(code) == "" {
		return data, nil
	}

	file, diags := hclsyntax.ParseConfig([]byte(code), "preprocess.hcl", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: parse preprocess body: %s", core.ErrValidation, diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("%w: preprocess body is not plain attributes", core.ErrValidation)
	}
	if len(body.Blocks) > 0 {
		return nil, fmt.Errorf("%w: preprocess body must hold only assignments", core.ErrValidation)
	}

	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, attr := range body.Attributes {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})

	evalCtx := &hcl.EvalContext{
		Variables: e.columnVariables(data),
		Functions: e.funcs,
	}

	for _, attr := range attrs {
		for _, traversal := range attr.Expr.Variables() {
			name := traversal.RootName()
			if _, ok := evalCtx.Variables[name]; !ok {
				return nil, core.NewUnknownColumnError(name, fmt.Sprintf("preprocess assignment %q", attr.Name))
			}
		}

		v, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluate preprocess %q: %s", attr.Name, diags.Error())
		}
		vals, err := toFloats(v, data.Rows())
		if err != nil {
			return nil, fmt.Errorf("preprocess %q: %w", attr.Name, err)
		}

		data, err = data.WithNumeric(attr.Name, vals)
		if err != nil {
			return nil, fmt.Errorf("preprocess %q: %w", attr.Name, err)
		}
		evalCtx.Variables[attr.Name] = floatsToList(vals)
	}
	return data, nil
}

// columnVariables binds every column as a whole-column value: numeric
// columns as number lists (missing values null), categorical as string lists.
func (e *Engine) columnVariables(data *frame.Frame) map[string]cty.Value {
	vars := make(map[string]cty.Value, len(data.Names()))
	for _, name := range data.Names() {
		col, _ := data.Column(name)
		if col.Kind == frame.Numeric {
			vars[name] = floatsToList(col.Floats)
			continue
		}
		if len(col.Labels) == 0 {
			vars[name] = cty.ListValEmpty(cty.String)
			continue
		}
		elems := make([]cty.Value, len(col.Labels))
		for i, s := range col.Labels {
			elems[i] = cty.StringVal(s)
		}
		vars[name] = cty.ListVal(elems)
	}
	return vars
}

// EvalFit evaluates a postprocess expression against a fitted artifact.
// The expression sees residuals and fitted as number lists plus r2, adj_r2,
// sigma and n as scalars; its output is a scalar or vector of numbers.
func (e *Engine) EvalFit(src string, fit *result.ModelFit) ([]float64, error) {
	expr, err := parseExpr(src)
	if err != nil {
		return nil, err
	}

	vars := map[string]cty.Value{
		"residuals": floatsToList(fit.Residuals),
		"fitted":    floatsToList(fit.Fitted),
		"r2":        cty.NumberFloatVal(fit.R2),
		"adj_r2":    cty.NumberFloatVal(fit.AdjR2),
		"sigma":     cty.NumberFloatVal(fit.Sigma),
		"n":         cty.NumberIntVal(int64(fit.N)),
	}
	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if _, ok := vars[name]; !ok {
			return nil, fmt.Errorf("postprocess expression %q references unknown artifact %q", src, name)
		}
	}

	v, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: e.funcs})
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate postprocess %q: %s", src, diags.Error())
	}
	return toFloats(v, -1)
}
