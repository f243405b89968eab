package grouper

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"cleanroom/internal/llm"
	"cleanroom/internal/models"
)

const (
	// nameThreshold is the minimum name similarity for two columns to
	// land in the same heuristic group.
	nameThreshold = 0.7
	// overlapThreshold pairs columns whose value sets overlap heavily
	// even when the names look unrelated.
	overlapThreshold = 0.5
	// clusterSampleSize bounds the sample values sent per column to the
	// clustering prompt.
	clusterSampleSize = 30
)

// Clusterer is the LLM side of grouping. *llm.Client satisfies it.
type Clusterer interface {
	ClusterColumns(ctx context.Context, cols []llm.ColumnSample) ([][]string, error)
}

// Service groups string-typed columns across datasets.
type Service struct {
	clusterer Clusterer
}

// NewService builds a grouper. clusterer may be nil, in which case only
// the heuristic path runs.
func NewService(clusterer Clusterer) *Service {
	return &Service{clusterer: clusterer}
}

// EligibleColumns returns the distinct string-typed column names across
// the datasets, in first-seen order.
func EligibleColumns(datasets []*models.Dataset) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, ds := range datasets {
		for _, h := range ds.Headers {
			if h == "" || seen[h] || !ds.IsStringColumn(h) {
				continue
			}
			seen[h] = true
			cols = append(cols, h)
		}
	}
	return cols
}

// Group partitions the eligible columns into ColumnGroups. The LLM
// clusterer is preferred; on failure (or when absent) the heuristic
// grouping takes over. Empty input yields an empty result.
func (s *Service) Group(ctx context.Context, datasets []*models.Dataset) ([]models.ColumnGroup, error) {
	eligible := EligibleColumns(datasets)
	if len(eligible) == 0 {
		return []models.ColumnGroup{}, nil
	}

	var clusters [][]string
	if s.clusterer != nil && len(eligible) >= 2 {
		samples := collectSamples(datasets, eligible)
		llmClusters, err := s.clusterer.ClusterColumns(ctx, samples)
		if err != nil {
			log.Printf("[Grouper] LLM clustering failed, falling back to heuristics: %v", err)
		} else {
			clusters = llmClusters
		}
	}
	if clusters == nil {
		clusters = HeuristicClusters(datasets, eligible)
	}

	groups := make([]models.ColumnGroup, 0, len(clusters))
	for i, cluster := range clusters {
		groups = append(groups, models.ColumnGroup{
			ID:      fmt.Sprintf("cluster_%d", i),
			Name:    fmt.Sprintf("Column Group %d", i+1),
			Columns: cluster,
		})
	}
	return groups, nil
}

// collectSamples builds the per-column digest for the clustering prompt.
// A column name appearing in several datasets contributes samples from
// each until the cap is reached.
func collectSamples(datasets []*models.Dataset, eligible []string) []llm.ColumnSample {
	samples := make([]llm.ColumnSample, 0, len(eligible))
	for _, col := range eligible {
		sample := llm.ColumnSample{Column: col}
		for _, ds := range datasets {
			if !ds.HasColumn(col) || !ds.IsStringColumn(col) {
				continue
			}
			if sample.Dataset == "" {
				sample.Dataset = ds.Name
			}
			values := ds.ColumnValues(col)
			sample.Total += len(values)
			for _, v := range values {
				if len(sample.Samples) >= clusterSampleSize {
					break
				}
				sample.Samples = append(sample.Samples, v)
			}
		}
		samples = append(samples, sample)
	}
	return samples
}

// HeuristicClusters groups columns by name similarity and value overlap
// using union-find. The result is a partition of the eligible columns.
func HeuristicClusters(datasets []*models.Dataset, eligible []string) [][]string {
	parent := make([]int, len(eligible))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	values := make(map[string][]string, len(eligible))
	for _, col := range eligible {
		for _, ds := range datasets {
			if ds.HasColumn(col) && ds.IsStringColumn(col) {
				values[col] = append(values[col], ds.ColumnValues(col)...)
			}
		}
	}

	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			if NameSimilarity(eligible[i], eligible[j]) >= nameThreshold {
				union(i, j)
				continue
			}
			if ValueOverlap(values[eligible[i]], values[eligible[j]]) >= overlapThreshold {
				union(i, j)
			}
		}
	}

	members := make(map[int][]string)
	var roots []int
	for i, col := range eligible {
		r := find(i)
		if _, ok := members[r]; !ok {
			roots = append(roots, r)
		}
		members[r] = append(members[r], col)
	}
	clusters := make([][]string, 0, len(roots))
	for _, r := range roots {
		clusters = append(clusters, members[r])
	}
	return clusters
}

// groupSampleDisplay bounds the sample values shown per group summary.
const groupSampleDisplay = 10

// BuildSummaries produces the group review table: member columns
// qualified by dataset, distinct value counts and a sample of values.
func BuildSummaries(groups []models.ColumnGroup, datasets []*models.Dataset) []models.GroupSummary {
	summaries := make([]models.GroupSummary, 0, len(groups))
	for _, group := range groups {
		summary := models.GroupSummary{
			GroupID:   group.ID,
			GroupName: group.Name,
		}

		distinct := make(map[string]bool)
		for _, col := range group.Columns {
			for _, ds := range datasets {
				if !ds.HasColumn(col) {
					continue
				}
				summary.ColumnsWithFiles = append(summary.ColumnsWithFiles,
					fmt.Sprintf("%s: %s", displayName(ds.Name), col))
				if !ds.IsStringColumn(col) {
					continue
				}
				values := ds.ColumnValues(col)
				colDistinct := make(map[string]bool)
				for _, v := range values {
					cleaned := llm.CleanValue(v)
					if cleaned == "" {
						continue
					}
					colDistinct[cleaned] = true
					distinct[cleaned] = true
				}
				summary.ColumnsInfo = append(summary.ColumnsInfo, models.ColumnInfo{
					Dataset:       ds.Name,
					Column:        col,
					UniqueCount:   len(colDistinct),
					NonEmptyCount: len(values),
				})
			}
		}
		sort.Strings(summary.ColumnsWithFiles)

		summary.TotalUniqueValues = len(distinct)
		sampleValues := make([]string, 0, len(distinct))
		for v := range distinct {
			sampleValues = append(sampleValues, v)
		}
		sort.Strings(sampleValues)
		if len(sampleValues) > groupSampleDisplay {
			sampleValues = sampleValues[:groupSampleDisplay]
		}
		summary.SampleValues = sampleValues
		summary.Instructions = group.Instructions

		summaries = append(summaries, summary)
	}
	return summaries
}

// displayName shortens "file.xlsx - Sheet1" to the sheet name, matching
// how groups are labeled in the review table.
func displayName(datasetName string) string {
	if idx := strings.LastIndex(datasetName, " - "); idx >= 0 {
		return datasetName[idx+len(" - "):]
	}
	return datasetName
}
