package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"cleanroom/internal/models"
)

func acceptedMapping(t *testing.T, columnID, column string, entries []models.MappingEntry) *models.Mapping {
	t.Helper()
	m := &models.Mapping{
		ColumnID: columnID,
		Column:   column,
		Status:   models.StatusProposed,
		Entries:  entries,
	}
	if err := m.Accept(); err != nil {
		t.Fatal(err)
	}
	return m
}

func exportDataset() *models.Dataset {
	return &models.Dataset{
		Name:    "brands.csv",
		Headers: []string{"Brand", "Country"},
		Rows: [][]string{
			{"GATORADE", "US"},
			{"GATORADE ZERO", "U.S."},
			{"PEPSI", "Mexico"},
		},
		ColumnTypes: map[string]string{"Brand": models.TypeString, "Country": models.TypeString},
	}
}

func TestApplyMappings(t *testing.T) {
	ds := exportDataset()
	mappings := map[string]*models.Mapping{
		"Column Group 1 - Country": acceptedMapping(t, "Column Group 1 - Country", "Country", []models.MappingEntry{
			{Original: "US", Standardized: "United States"},
			{Original: "U.S.", Standardized: "United States"},
		}),
	}

	out := ApplyMappings(ds, mappings)

	if len(out.Headers) != 3 || out.Headers[2] != "Country_standardized" {
		t.Fatalf("headers = %v, want Country_standardized appended", out.Headers)
	}
	want := []string{"United States", "United States", "Mexico"}
	for i, w := range want {
		if out.Rows[i][2] != w {
			t.Errorf("row %d standardized = %q, want %q", i, out.Rows[i][2], w)
		}
	}
	// The source dataset is untouched.
	if len(ds.Headers) != 2 {
		t.Errorf("source headers mutated: %v", ds.Headers)
	}
	if len(ds.Rows[0]) != 2 {
		t.Errorf("source rows mutated: %v", ds.Rows[0])
	}
}

func TestApplyMappingsIdempotent(t *testing.T) {
	_ = exportDataset()
	mapping := acceptedMapping(t, "Column Group 1 - Country", "Country", []models.MappingEntry{
		{Original: "US", Standardized: "United States"},
		{Original: "U.S.", Standardized: "United States"},
	})
	lookup := mapping.Lookup()

	// Running already-standardized values back through the lookup changes
	// nothing: acceptance added identity entries.
	for _, standardized := range lookup {
		if again, ok := lookup[standardized]; !ok || again != standardized {
			t.Errorf("standardized value %q maps to %q, want itself", standardized, again)
		}
	}
}

func TestApplyMappingsSkipsUnaccepted(t *testing.T) {
	ds := exportDataset()
	mappings := map[string]*models.Mapping{
		"Column Group 1 - Country": {
			ColumnID: "Column Group 1 - Country",
			Column:   "Country",
			Status:   models.StatusProposed,
			Entries:  []models.MappingEntry{{Original: "US", Standardized: "United States"}},
		},
	}
	out := ApplyMappings(ds, mappings)
	if len(out.Headers) != 2 {
		t.Fatalf("headers = %v, proposed mapping must not be applied", out.Headers)
	}
}

func TestApplyMappingsMissingColumn(t *testing.T) {
	ds := exportDataset()
	mappings := map[string]*models.Mapping{
		"Column Group 1 - Region": acceptedMapping(t, "Column Group 1 - Region", "Region", []models.MappingEntry{
			{Original: "N", Standardized: "North"},
		}),
	}
	out := ApplyMappings(ds, mappings)
	if len(out.Headers) != 2 {
		t.Fatalf("headers = %v, mapping for absent column must be skipped", out.Headers)
	}
}

func TestWriteMappingsWorkbook(t *testing.T) {
	mappings := map[string]*models.Mapping{
		"Column Group 1 - Country": acceptedMapping(t, "Column Group 1 - Country", "Country", []models.MappingEntry{
			{Original: "US", Standardized: "United States"},
			{Original: "U.S.", Standardized: "United States"},
		}),
	}

	var buf bytes.Buffer
	if err := WriteMappingsWorkbook(&buf, mappings); err != nil {
		t.Fatalf("WriteMappingsWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reading workbook back: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 {
		t.Fatalf("sheets = %v, want one per mapping", sheets)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatal(err)
	}
	// Two proposed entries plus the identity entry added at acceptance.
	if len(rows) != 4 {
		t.Fatalf("rows = %v, want header plus three entries", rows)
	}
	if rows[0][0] != "Original" || rows[0][1] != "Standardized" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "US" || rows[1][1] != "United States" {
		t.Errorf("entry row = %v", rows[1])
	}
	if rows[3][0] != "United States" || rows[3][1] != "United States" {
		t.Errorf("identity row = %v", rows[3])
	}
}

func TestWriteMappingsWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMappingsWorkbook(&buf, map[string]*models.Mapping{}); err == nil {
		t.Fatal("WriteMappingsWorkbook succeeded with nothing to export")
	}
}

func TestWriteCleanedWorkbook(t *testing.T) {
	datasets := []*models.Dataset{exportDataset()}
	mappings := map[string]*models.Mapping{
		"Column Group 1 - Country": acceptedMapping(t, "Column Group 1 - Country", "Country", []models.MappingEntry{
			{Original: "US", Standardized: "United States"},
			{Original: "U.S.", Standardized: "United States"},
		}),
	}

	var buf bytes.Buffer
	if err := WriteCleanedWorkbook(&buf, datasets, mappings); err != nil {
		t.Fatalf("WriteCleanedWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reading workbook back: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 {
		t.Fatalf("sheets = %v, want one per dataset", sheets)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][2] != "Country_standardized" {
		t.Errorf("header = %v, want standardized column appended", rows[0])
	}
	if rows[1][2] != "United States" {
		t.Errorf("first data row = %v", rows[1])
	}
	// Unmapped value passes through unchanged.
	if rows[3][2] != "Mexico" {
		t.Errorf("passthrough row = %v", rows[3])
	}
}

func TestSheetNamer(t *testing.T) {
	n := newSheetNamer()

	tests := []struct {
		input string
		want  string
	}{
		{"Column Group 1 - Country", "Column_Group_1___Country"},
		{"a/b:c*d?e[f]g", "a_b_c_d_e_f_g"},
		{"", "Sheet"},
	}
	for _, tt := range tests {
		if got := n.sheetName(tt.input); got != tt.want {
			t.Errorf("sheetName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSheetNamerLengthAndUniqueness(t *testing.T) {
	n := newSheetNamer()
	long := "An Extremely Long Column Group Name - Some Column"
	first := n.sheetName(long)
	second := n.sheetName(long)

	if len(first) > 31 || len(second) > 31 {
		t.Errorf("sheet names exceed 31 chars: %q %q", first, second)
	}
	if first == second {
		t.Errorf("duplicate sheet name %q", first)
	}
}
