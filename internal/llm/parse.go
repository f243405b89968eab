package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"cleanroom/internal/models"
)

// ParseError is returned when a response stays unparseable after the
// repair pass. Raw carries the full model output so callers can show it
// to the user instead of failing silently.
type ParseError struct {
	ColumnID string
	Raw      string
}

func (e *ParseError) Error() string {
	if e.ColumnID != "" {
		return fmt.Sprintf("could not parse model response for %s", e.ColumnID)
	}
	return "could not parse model response"
}

var (
	codeFenceRe     = regexp.MustCompile("```(?:json)?")
	invalidEscapeRe = regexp.MustCompile(`\\([^\\/"bfnrtu]|$)`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	jsonArrayRe     = regexp.MustCompile(`\[[\s\S]*\]`)
)

// StripCodeFences removes markdown code fence markers.
func StripCodeFences(s string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
}

// CleanInvalidEscapes doubles any backslash that does not start a valid
// JSON escape sequence, so the text survives a JSON parse.
func CleanInvalidEscapes(s string) string {
	return invalidEscapeRe.ReplaceAllString(s, `\\$1`)
}

// CleanValue prepares a raw cell value for prompting: invalid escapes are
// fixed and runs of whitespace collapse to single spaces.
func CleanValue(s string) string {
	s = CleanInvalidEscapes(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// parseMappingLines reads the "original=canonical" line format. The split
// is on the first '=' only, so values may contain the character.
func parseMappingLines(s string) []models.MappingEntry {
	var entries []models.MappingEntry
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "=") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		original := strings.TrimSpace(parts[0])
		standardized := strings.TrimSpace(parts[1])
		if original == "" || standardized == "" {
			continue
		}
		entries = append(entries, models.MappingEntry{
			Original:     original,
			Standardized: standardized,
		})
	}
	return entries
}

// mappingObject tolerates both field spellings the model has been seen to
// produce for the JSON fallback format.
type mappingObject struct {
	Original     string `json:"original"`
	Standardized string `json:"standardized"`
	BrandName    string `json:"Brand Name"`
	ClassifiedAs string `json:"Classified As"`
}

func (o mappingObject) entry() (models.MappingEntry, bool) {
	original := o.Original
	if original == "" {
		original = o.BrandName
	}
	standardized := o.Standardized
	if standardized == "" {
		standardized = o.ClassifiedAs
	}
	if original == "" || standardized == "" {
		return models.MappingEntry{}, false
	}
	return models.MappingEntry{Original: original, Standardized: standardized}, true
}

// ParseMappingResponse extracts mapping entries from a model response.
// The line format is tried first; a JSON array of objects is accepted as
// a fallback. Both attempts run against the repaired text; failure yields
// a *ParseError carrying the raw response.
func ParseMappingResponse(raw, columnID string) ([]models.MappingEntry, error) {
	cleaned := CleanInvalidEscapes(StripCodeFences(raw))

	if entries := parseMappingLines(cleaned); len(entries) > 0 {
		return entries, nil
	}

	if arr := jsonArrayRe.FindString(cleaned); arr != "" {
		var objects []mappingObject
		if err := json.Unmarshal([]byte(arr), &objects); err == nil {
			var entries []models.MappingEntry
			for _, o := range objects {
				if e, ok := o.entry(); ok {
					entries = append(entries, e)
				}
			}
			if len(entries) > 0 {
				return entries, nil
			}
		}
	}

	return nil, &ParseError{ColumnID: columnID, Raw: raw}
}

// ParseClusterResponse extracts a column partition from a clustering
// response and validates it against the known column names: unknown names
// are dropped, repeats keep only their first placement, and columns the
// model missed come back as singleton groups. The result always covers
// every known column exactly once.
func ParseClusterResponse(raw string, known []string) ([][]string, error) {
	cleaned := CleanInvalidEscapes(StripCodeFences(raw))

	arr := jsonArrayRe.FindString(cleaned)
	if arr == "" {
		return nil, &ParseError{Raw: raw}
	}

	var clusters [][]string
	if err := json.Unmarshal([]byte(arr), &clusters); err != nil {
		return nil, &ParseError{Raw: raw}
	}

	knownSet := make(map[string]bool, len(known))
	for _, col := range known {
		knownSet[col] = true
	}

	placed := make(map[string]bool)
	var validated [][]string
	for _, cluster := range clusters {
		var kept []string
		for _, col := range cluster {
			if knownSet[col] && !placed[col] {
				placed[col] = true
				kept = append(kept, col)
			}
		}
		if len(kept) > 0 {
			validated = append(validated, kept)
		}
	}
	for _, col := range known {
		if !placed[col] {
			validated = append(validated, []string{col})
		}
	}
	return validated, nil
}

// FormatMappingLines renders entries back into the line format used in
// refinement prompts.
func FormatMappingLines(entries []models.MappingEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Original)
		sb.WriteString("=")
		sb.WriteString(e.Standardized)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
