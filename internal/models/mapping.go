package models

import "fmt"

// MappingStatus tracks where a mapping sits in the review workflow.
type MappingStatus string

const (
	// StatusProposed means the mapping came back from the LLM and is
	// waiting for review.
	StatusProposed MappingStatus = "proposed"
	// StatusUnderReview means feedback has been submitted and a
	// refinement call is pending.
	StatusUnderReview MappingStatus = "under_review"
	// StatusAccepted is terminal; the mapping can only be applied.
	StatusAccepted MappingStatus = "accepted"
)

// MappingEntry is a single original → standardized pair.
type MappingEntry struct {
	Original     string `json:"original"`
	Standardized string `json:"standardized"`
}

// Feedback is a reviewer correction for one entry. It is consumed by
// exactly one refinement iteration.
type Feedback struct {
	Original     string `json:"original"`
	Standardized string `json:"standardized"`
}

// Mapping holds the value-standardization table for one column, together
// with its review state. ColumnID is "<group name> - <column name>".
type Mapping struct {
	ColumnID  string         `json:"column_id"`
	Column    string         `json:"column"`
	GroupID   string         `json:"group_id"`
	Entries   []MappingEntry `json:"entries"`
	Status    MappingStatus  `json:"status"`
	Iteration int            `json:"iteration"`

	// RawResponse keeps the unparsed LLM output when parsing failed, so
	// the user can act on it manually.
	RawResponse string `json:"raw_response,omitempty"`
	Error       string `json:"error,omitempty"`

	pendingFeedback []Feedback
}

// SubmitFeedback records reviewer corrections and moves the mapping to
// under review. Rejected once the mapping is accepted.
func (m *Mapping) SubmitFeedback(fb []Feedback) error {
	if m.Status == StatusAccepted {
		return fmt.Errorf("mapping %s is accepted and can no longer change", m.ColumnID)
	}
	if len(fb) == 0 {
		return fmt.Errorf("no feedback entries provided")
	}
	m.pendingFeedback = append(m.pendingFeedback, fb...)
	m.Status = StatusUnderReview
	return nil
}

// PendingFeedback returns feedback collected since the last refinement.
func (m *Mapping) PendingFeedback() []Feedback {
	return m.pendingFeedback
}

// ApplyRefinement replaces the entries with the refined result, consumes
// the pending feedback and moves the mapping back to proposed.
func (m *Mapping) ApplyRefinement(entries []MappingEntry) error {
	if m.Status == StatusAccepted {
		return fmt.Errorf("mapping %s is accepted and can no longer change", m.ColumnID)
	}
	if m.Status != StatusUnderReview {
		return fmt.Errorf("mapping %s has no feedback to refine", m.ColumnID)
	}
	m.Entries = entries
	m.pendingFeedback = nil
	m.Iteration++
	m.Status = StatusProposed
	return nil
}

// Accept finalizes the mapping. Every standardized value is given an
// identity entry so applying the mapping is idempotent.
func (m *Mapping) Accept() error {
	if m.Status == StatusAccepted {
		return nil
	}
	if m.Status != StatusProposed {
		return fmt.Errorf("mapping %s has unprocessed feedback", m.ColumnID)
	}
	seen := make(map[string]bool, len(m.Entries))
	for _, e := range m.Entries {
		seen[e.Original] = true
	}
	for _, e := range m.Entries {
		if !seen[e.Standardized] {
			seen[e.Standardized] = true
			m.Entries = append(m.Entries, MappingEntry{
				Original:     e.Standardized,
				Standardized: e.Standardized,
			})
		}
	}
	m.pendingFeedback = nil
	m.Status = StatusAccepted
	return nil
}

// Lookup returns the entries as a translation map (last entry wins on
// duplicates, matching review order).
func (m *Mapping) Lookup() map[string]string {
	lookup := make(map[string]string, len(m.Entries))
	for _, e := range m.Entries {
		lookup[e.Original] = e.Standardized
	}
	return lookup
}

// StandardizationStats reports how much a mapping shrinks the value space.
type StandardizationStats struct {
	OriginalCount       int     `json:"original_count"`
	StandardizedCount   int     `json:"standardized_count"`
	Reduction           int     `json:"reduction"`
	ReductionPercentage float64 `json:"reduction_percentage"`
}

// Stats computes the reduction summary for the current entries.
func (m *Mapping) Stats() StandardizationStats {
	originals := make(map[string]bool)
	standardized := make(map[string]bool)
	for _, e := range m.Entries {
		originals[e.Original] = true
		standardized[e.Standardized] = true
	}
	stats := StandardizationStats{
		OriginalCount:     len(originals),
		StandardizedCount: len(standardized),
	}
	stats.Reduction = stats.OriginalCount - stats.StandardizedCount
	if stats.OriginalCount > 0 {
		pct := float64(stats.Reduction) / float64(stats.OriginalCount) * 100
		stats.ReductionPercentage = float64(int(pct*10+0.5)) / 10
	}
	return stats
}
