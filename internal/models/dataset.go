package models

// Column type labels produced by the loader's inference.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeDate   = "date"
)

// Dataset is a loaded table. It is read-only after loading; the export
// stage works on copies.
type Dataset struct {
	Name        string            `json:"name"`
	SourceFile  string            `json:"source_file"`
	SheetName   string            `json:"sheet_name,omitempty"`
	Headers     []string          `json:"headers"`
	Rows        [][]string        `json:"-"`
	ColumnTypes map[string]string `json:"column_types"`
}

// NumRows returns the number of data rows.
func (d *Dataset) NumRows() int {
	return len(d.Rows)
}

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int {
	return len(d.Headers)
}

// ColumnIndex returns the position of a column, or -1 if absent.
func (d *Dataset) ColumnIndex(name string) int {
	for i, h := range d.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// IsStringColumn reports whether the column was inferred as string-typed.
func (d *Dataset) IsStringColumn(name string) bool {
	return d.ColumnTypes[name] == TypeString
}

// ColumnValues returns the non-empty values of a column in row order.
func (d *Dataset) ColumnValues(name string) []string {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := []string{}
	for _, row := range d.Rows {
		if idx < len(row) && row[idx] != "" {
			values = append(values, row[idx])
		}
	}
	return values
}

// DatasetSummary is the per-dataset shape report shown after upload.
type DatasetSummary struct {
	Name        string            `json:"name"`
	SourceFile  string            `json:"source_file"`
	SheetName   string            `json:"sheet_name,omitempty"`
	NumRows     int               `json:"num_rows"`
	NumColumns  int               `json:"num_columns"`
	ColumnTypes map[string]string `json:"column_types"`
}

// Summary builds the shape report for the dataset.
func (d *Dataset) Summary() DatasetSummary {
	return DatasetSummary{
		Name:        d.Name,
		SourceFile:  d.SourceFile,
		SheetName:   d.SheetName,
		NumRows:     d.NumRows(),
		NumColumns:  d.NumColumns(),
		ColumnTypes: d.ColumnTypes,
	}
}
