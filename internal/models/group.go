package models

// ColumnRef identifies one column inside one dataset. The same column name
// may exist in several datasets; a group stores plain names and resolves
// them against each dataset when summarizing.
type ColumnRef struct {
	Dataset string `json:"dataset"`
	Column  string `json:"column"`
}

// ColumnGroup is a set of column names judged to hold the same kind of
// values, across one or more datasets.
type ColumnGroup struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Custom  bool     `json:"custom"`

	// Instructions is free text the user attaches to the group; it is
	// appended to the mapping prompt.
	Instructions string `json:"instructions,omitempty"`
}

// ColumnInfo describes one member column for the group summary table.
type ColumnInfo struct {
	Dataset       string `json:"dataset"`
	Column        string `json:"column"`
	UniqueCount   int    `json:"unique_count"`
	NonEmptyCount int    `json:"non_empty_count"`
}

// GroupSummary is one row of the group review table.
type GroupSummary struct {
	GroupID           string       `json:"group_id"`
	GroupName         string       `json:"group_name"`
	ColumnsWithFiles  []string     `json:"columns_with_files"`
	TotalUniqueValues int          `json:"total_unique_values"`
	SampleValues      []string     `json:"sample_values"`
	ColumnsInfo       []ColumnInfo `json:"columns_info"`
	Instructions      string       `json:"instructions,omitempty"`
}
