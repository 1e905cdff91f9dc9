package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"multiverse/domain/frame"
	"multiverse/internal"
)

// DataReader loads a tabular dataset from an Excel or CSV file into a frame.
// Column types are inferred from the cell contents: a column where at least
// numericThreshold of the non-empty cells parse as numbers becomes numeric
// (unparseable or empty cells become NaN), everything else is categorical.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

const numericThreshold = 0.9

// NewDataReader creates a reader for the given path; the file type is taken
// from the extension.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		sheet:    "Sheet1",
		logger:   internal.DefaultLogger.WithComponent("DataReader"),
	}
}

// WithSheet overrides the workbook sheet read for xlsx files
func (r *DataReader) WithSheet(name string) *DataReader {
	r.sheet = name
	return r
}

// Read loads the file into an immutable frame
func (r *DataReader) Read() (*frame.Frame, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("dataset file not found: %s", r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%s needs a header row and at least one data row", r.filePath)
	}
	return r.buildFrame(rows)
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", r.sheet, err)
	}
	r.logger.Debug("read %d rows from %s", len(rows), r.filePath)
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("read %d rows from %s", len(rows), r.filePath)
	return rows, nil
}

func (r *DataReader) buildFrame(rows [][]string) (*frame.Frame, error) {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	body := rows[1:]
	data := frame.New()
	var err error
	for col, header := range headers {
		if header == "" {
			return nil, fmt.Errorf("column %d has an empty header", col+1)
		}

		cells := make([]string, len(body))
		for i, row := range body {
			if col < len(row) {
				cells[i] = strings.TrimSpace(row[col])
			}
		}

		if isNumericColumn(cells) {
			vals := make([]float64, len(cells))
			for i, cell := range cells {
				if v, perr := strconv.ParseFloat(cell, 64); perr == nil {
					vals[i] = v
				} else {
					vals[i] = math.NaN()
				}
			}
			data, err = data.WithNumeric(header, vals)
		} else {
			data, err = data.WithCategorical(header, cells)
		}
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", header, err)
		}
	}

	r.logger.Info("%s dataset loaded (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), data.Rows())
	return data, nil
}

func isNumericColumn(cells []string) bool {
	parsed, nonEmpty := 0, 0
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			parsed++
		}
	}
	if nonEmpty == 0 {
		return false
	}
	return float64(parsed)/float64(nonEmpty) >= numericThreshold
}
