package export

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"cleanroom/internal/metrics"
	"cleanroom/internal/models"
)

// ApplyMappings returns a copy of the dataset with one
// "<column>_standardized" column appended per accepted mapping that
// targets one of its columns. Values without a mapping entry pass through
// unchanged, so applying an accepted mapping is idempotent.
func ApplyMappings(ds *models.Dataset, mappings map[string]*models.Mapping) *models.Dataset {
	out := &models.Dataset{
		Name:        ds.Name,
		SourceFile:  ds.SourceFile,
		SheetName:   ds.SheetName,
		Headers:     append([]string(nil), ds.Headers...),
		ColumnTypes: make(map[string]string, len(ds.ColumnTypes)),
	}
	for k, v := range ds.ColumnTypes {
		out.ColumnTypes[k] = v
	}
	out.Rows = make([][]string, len(ds.Rows))
	for i, row := range ds.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}

	added := make(map[string]bool)
	for _, columnID := range sortedMappingIDs(mappings) {
		mapping := mappings[columnID]
		if mapping.Status != models.StatusAccepted || len(mapping.Entries) == 0 {
			continue
		}
		srcIdx := ds.ColumnIndex(mapping.Column)
		if srcIdx < 0 {
			continue
		}
		newCol := mapping.Column + "_standardized"
		if added[newCol] {
			continue
		}
		added[newCol] = true

		lookup := mapping.Lookup()
		out.Headers = append(out.Headers, newCol)
		out.ColumnTypes[newCol] = models.TypeString
		for i := range out.Rows {
			original := ""
			if srcIdx < len(ds.Rows[i]) {
				original = ds.Rows[i][srcIdx]
			}
			standardized, ok := lookup[original]
			if !ok {
				standardized = original
			}
			out.Rows[i] = append(out.Rows[i], standardized)
		}
	}
	return out
}

// WriteMappingsWorkbook writes one sheet per column mapping, each listing
// the Original/Standardized pairs.
func WriteMappingsWorkbook(w io.Writer, mappings map[string]*models.Mapping) error {
	f := excelize.NewFile()
	defer f.Close()

	names := newSheetNamer()
	wrote := false
	for _, columnID := range sortedMappingIDs(mappings) {
		mapping := mappings[columnID]
		if len(mapping.Entries) == 0 {
			continue
		}
		sheet := names.sheetName(columnID)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("creating sheet %q: %w", sheet, err)
		}
		if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Original", "Standardized"}); err != nil {
			return err
		}
		for i, e := range mapping.Entries {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &[]interface{}{e.Original, e.Standardized}); err != nil {
				return err
			}
		}
		wrote = true
	}
	if !wrote {
		return fmt.Errorf("no mappings to export")
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	metrics.ExportsTotal.WithLabelValues("mappings").Inc()
	return nil
}

// WriteCleanedWorkbook writes one sheet per dataset containing the
// original columns plus the standardized columns from the accepted
// mappings.
func WriteCleanedWorkbook(w io.Writer, datasets []*models.Dataset, mappings map[string]*models.Mapping) error {
	if len(datasets) == 0 {
		return fmt.Errorf("no datasets to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	names := newSheetNamer()
	for _, ds := range datasets {
		cleaned := ApplyMappings(ds, mappings)
		sheet := names.sheetName(trimExtension(ds.Name))
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("creating sheet %q: %w", sheet, err)
		}

		header := make([]interface{}, len(cleaned.Headers))
		for i, h := range cleaned.Headers {
			header[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		for i, row := range cleaned.Rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	metrics.ExportsTotal.WithLabelValues("cleaned").Inc()
	return nil
}

var invalidSheetChars = regexp.MustCompile(`[ :\\/?*\[\]-]`)

// sheetNamer produces valid, unique Excel sheet names (31 chars max).
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]bool)}
}

func (n *sheetNamer) sheetName(base string) string {
	name := invalidSheetChars.ReplaceAllString(base, "_")
	if len(name) > 31 {
		name = name[:31]
	}
	if name == "" {
		name = "Sheet"
	}
	candidate := name
	for i := 2; n.used[candidate]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		trimmed := name
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		candidate = trimmed + suffix
	}
	n.used[candidate] = true
	return candidate
}

func trimExtension(name string) string {
	for _, ext := range []string{".csv", ".tsv", ".xlsx", ".xls"} {
		name = strings.ReplaceAll(name, ext, "")
	}
	return name
}

func sortedMappingIDs(m map[string]*models.Mapping) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
