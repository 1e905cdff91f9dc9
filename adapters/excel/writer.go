package excel

import (
	"fmt"
	"math"
	"sort"

	"github.com/xuri/excelize/v2"

	"multiverse/domain/result"
)

// ResultWriter exports a tidy result table to an xlsx workbook, one row per
// (pipeline, parameter) plus one column per decision group. Condensed
// summaries land on their own sheet.
type ResultWriter struct {
	filePath string
}

// NewResultWriter creates a writer targeting the given path
func NewResultWriter(filePath string) *ResultWriter {
	return &ResultWriter{filePath: filePath}
}

// Write saves the tidy rows and, when present, the condensed summaries
func (w *ResultWriter) Write(rows []result.Row, condensed []result.Condensed) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeRows(f, "Results", rows); err != nil {
		return err
	}
	if len(condensed) > 0 {
		if err := w.writeCondensed(f, "Summary", condensed); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.filePath); err != nil {
		return fmt.Errorf("failed to save results to %s: %w", w.filePath, err)
	}
	return nil
}

func (w *ResultWriter) writeRows(f *excelize.File, sheet string, rows []result.Row) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	f.DeleteSheet("Sheet1")

	decisionCols := decisionColumns(rows)
	header := []interface{}{"pipeline_id", "kind", "parameter", "status",
		"estimate", "std_err", "p_value", "ci_low", "ci_high"}
	for _, name := range decisionCols {
		header = append(header, name)
	}
	if hasLongRows(rows) {
		header = append(header, "group", "choice")
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		record := []interface{}{int(row.PipelineID), string(row.Kind), row.Parameter,
			string(row.Status), cell(row.Estimate), cell(row.StdErr),
			cell(row.PValue), cell(row.CILow), cell(row.CIHigh)}
		for _, name := range decisionCols {
			record = append(record, row.Decisions[name])
		}
		if hasLongRows(rows) {
			record = append(record, row.Group, row.Choice)
		}
		axis := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, axis, &record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return nil
}

func (w *ResultWriter) writeCondensed(f *excelize.File, sheet string, condensed []result.Condensed) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	header := []interface{}{"parameter", "value", "n"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, c := range condensed {
		record := []interface{}{c.Parameter, cell(c.Value), c.N}
		axis := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, axis, &record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return nil
}

// cell maps NaN to an empty cell, which Excel has no encoding for
func cell(v float64) interface{} {
	if math.IsNaN(v) {
		return ""
	}
	return v
}

func decisionColumns(rows []result.Row) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for name := range row.Decisions {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func hasLongRows(rows []result.Row) bool {
	for _, row := range rows {
		if row.Group != "" {
			return true
		}
	}
	return false
}
