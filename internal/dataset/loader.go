package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"cleanroom/internal/models"
)

// typeSampleSize bounds how many values are inspected per column when
// inferring its type.
const typeSampleSize = 50

// Load parses an uploaded file into one or more Datasets. CSV files yield
// one dataset; Excel files yield one dataset per selected sheet (all
// sheets when selection is empty).
func Load(filename string, content []byte, sheets []string) ([]*models.Dataset, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".tsv"):
		ds, err := LoadCSV(filename, content, strings.HasSuffix(lower, ".tsv"))
		if err != nil {
			return nil, err
		}
		return []*models.Dataset{ds}, nil
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return LoadExcel(filename, content, sheets)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filename)
	}
}

// LoadCSV parses CSV or TSV content. The first row is the header; short
// rows are padded so every row matches the header width.
func LoadCSV(filename string, content []byte, isTSV bool) (*models.Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	if isTSV {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("%s is empty", filename)
	}

	headers := allRows[0]
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	rows := padRows(allRows[1:], len(headers))

	return &models.Dataset{
		Name:        filename,
		SourceFile:  filename,
		Headers:     headers,
		Rows:        rows,
		ColumnTypes: inferColumnTypes(headers, rows),
	}, nil
}

// ListSheets returns the sheet names of an Excel workbook.
func ListSheets(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// LoadExcel parses the selected sheets of a workbook. With more than one
// sheet loaded, each dataset is named "<file> - <sheet>" so columns stay
// attributable to their sheet.
func LoadExcel(filename string, content []byte, sheets []string) ([]*models.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filename, err)
	}
	defer f.Close()

	available := f.GetSheetList()
	if len(available) == 0 {
		return nil, fmt.Errorf("%s has no sheets", filename)
	}
	if len(sheets) == 0 {
		sheets = available
	}

	known := make(map[string]bool, len(available))
	for _, s := range available {
		known[s] = true
	}

	var datasets []*models.Dataset
	for _, sheet := range sheets {
		if !known[sheet] {
			return nil, fmt.Errorf("%s has no sheet %q", filename, sheet)
		}
		allRows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading %s sheet %q: %w", filename, sheet, err)
		}
		if len(allRows) == 0 {
			continue
		}
		headers := allRows[0]
		for i, h := range headers {
			headers[i] = strings.TrimSpace(h)
		}
		rows := padRows(allRows[1:], len(headers))

		name := filename
		if len(available) > 1 {
			name = fmt.Sprintf("%s - %s", filename, sheet)
		}
		datasets = append(datasets, &models.Dataset{
			Name:        name,
			SourceFile:  filename,
			SheetName:   sheet,
			Headers:     headers,
			Rows:        rows,
			ColumnTypes: inferColumnTypes(headers, rows),
		})
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("%s contains no data", filename)
	}
	return datasets, nil
}

func padRows(rows [][]string, width int) [][]string {
	for i := range rows {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}
	return rows
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func inferValueType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.TypeString
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.TypeInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return models.TypeFloat
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return models.TypeDate
		}
	}
	return models.TypeString
}

// inferColumnTypes samples each column and picks the most frequent
// inferred type. Int degrades to float when both appear; empty columns
// default to string.
func inferColumnTypes(headers []string, rows [][]string) map[string]string {
	types := make(map[string]string, len(headers))
	for idx, header := range headers {
		counts := map[string]int{}
		sampled := 0
		for _, row := range rows {
			if sampled >= typeSampleSize {
				break
			}
			if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
				continue
			}
			counts[inferValueType(row[idx])]++
			sampled++
		}
		types[header] = dominantType(counts)
	}
	return types
}

func dominantType(counts map[string]int) string {
	if len(counts) == 0 {
		return models.TypeString
	}
	// Any string value makes the whole column string-typed; mixed numeric
	// columns are float.
	if counts[models.TypeString] > 0 {
		return models.TypeString
	}
	if counts[models.TypeDate] > 0 && counts[models.TypeInt] == 0 && counts[models.TypeFloat] == 0 {
		return models.TypeDate
	}
	if counts[models.TypeFloat] > 0 {
		return models.TypeFloat
	}
	if counts[models.TypeInt] > 0 {
		return models.TypeInt
	}
	return models.TypeString
}
