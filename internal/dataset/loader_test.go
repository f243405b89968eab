package dataset

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"cleanroom/internal/models"
)

func TestLoadCSV(t *testing.T) {
	content := []byte("Brand, Country,Amount\nGatorade,US,10\nPepsi,U.S.,20.5\nGatorade Zero,USA,\n")

	ds, err := LoadCSV("brands.csv", content, false)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	wantHeaders := []string{"Brand", "Country", "Amount"}
	if len(ds.Headers) != len(wantHeaders) {
		t.Fatalf("headers = %v, want %v", ds.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if ds.Headers[i] != h {
			t.Errorf("header[%d] = %q, want %q", i, ds.Headers[i], h)
		}
	}
	if ds.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", ds.NumRows())
	}
	if ds.Rows[1][1] != "U.S." {
		t.Errorf("row[1][1] = %q, want U.S.", ds.Rows[1][1])
	}

	if got := ds.ColumnTypes["Brand"]; got != models.TypeString {
		t.Errorf("Brand type = %q, want string", got)
	}
	if got := ds.ColumnTypes["Amount"]; got != models.TypeFloat {
		t.Errorf("Amount type = %q, want float", got)
	}
}

func TestLoadCSVShortRowsPadded(t *testing.T) {
	content := []byte("A,B,C\n1,2\nx\n")

	ds, err := LoadCSV("ragged.csv", content, false)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	for i, row := range ds.Rows {
		if len(row) != 3 {
			t.Errorf("row %d width = %d, want 3", i, len(row))
		}
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	if _, err := LoadCSV("empty.csv", nil, false); err == nil {
		t.Fatal("LoadCSV succeeded on empty content")
	}
}

func TestLoadTSV(t *testing.T) {
	content := []byte("Name\tCity\nAlice\tBerlin\n")
	datasets, err := Load("people.tsv", content, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(datasets) != 1 {
		t.Fatalf("datasets = %d, want 1", len(datasets))
	}
	if datasets[0].Rows[0][1] != "Berlin" {
		t.Errorf("row value = %q, want Berlin", datasets[0].Rows[0][1])
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	if _, err := Load("data.json", []byte("{}"), nil); err == nil {
		t.Fatal("Load succeeded on unsupported extension")
	}
}

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for sheet, rows := range sheets {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatal(err)
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadExcelMultiSheet(t *testing.T) {
	content := buildWorkbook(t, map[string][][]interface{}{
		"East": {{"Brand", "Country"}, {"Gatorade", "US"}},
		"West": {{"Brand", "Country"}, {"Pepsi", "USA"}},
	})

	datasets, err := LoadExcel("sales.xlsx", content, nil)
	if err != nil {
		t.Fatalf("LoadExcel: %v", err)
	}
	if len(datasets) != 2 {
		t.Fatalf("datasets = %d, want 2", len(datasets))
	}
	// Multi-sheet workbooks qualify each dataset name with its sheet.
	names := map[string]bool{}
	for _, ds := range datasets {
		names[ds.Name] = true
		if ds.SourceFile != "sales.xlsx" {
			t.Errorf("SourceFile = %q, want sales.xlsx", ds.SourceFile)
		}
	}
	if !names["sales.xlsx - East"] || !names["sales.xlsx - West"] {
		t.Errorf("dataset names = %v, want sheet-qualified", names)
	}
}

func TestLoadExcelSheetSelection(t *testing.T) {
	content := buildWorkbook(t, map[string][][]interface{}{
		"East": {{"Brand"}, {"Gatorade"}},
		"West": {{"Brand"}, {"Pepsi"}},
	})

	datasets, err := LoadExcel("sales.xlsx", content, []string{"West"})
	if err != nil {
		t.Fatalf("LoadExcel: %v", err)
	}
	if len(datasets) != 1 {
		t.Fatalf("datasets = %d, want 1", len(datasets))
	}
	if datasets[0].SheetName != "West" {
		t.Errorf("SheetName = %q, want West", datasets[0].SheetName)
	}

	if _, err := LoadExcel("sales.xlsx", content, []string{"North"}); err == nil {
		t.Fatal("LoadExcel succeeded with unknown sheet")
	}
}

func TestListSheets(t *testing.T) {
	content := buildWorkbook(t, map[string][][]interface{}{
		"Only": {{"A"}, {"1"}},
	})
	sheets, err := ListSheets(content)
	if err != nil {
		t.Fatalf("ListSheets: %v", err)
	}
	if len(sheets) != 1 || sheets[0] != "Only" {
		t.Errorf("sheets = %v, want [Only]", sheets)
	}
}

func TestInferColumnTypes(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"all ints", []string{"1", "2", "30"}, models.TypeInt},
		{"mixed numeric", []string{"1", "2.5"}, models.TypeFloat},
		{"dates", []string{"2024-01-02", "2024-03-04"}, models.TypeDate},
		{"strings win", []string{"1", "two", "3"}, models.TypeString},
		{"empty column", []string{"", ""}, models.TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([][]string, len(tt.values))
			for i, v := range tt.values {
				rows[i] = []string{v}
			}
			types := inferColumnTypes([]string{"col"}, rows)
			if types["col"] != tt.want {
				t.Errorf("type = %q, want %q", types["col"], tt.want)
			}
		})
	}
}
