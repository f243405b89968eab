package standardizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"cleanroom/internal/llm"
	"cleanroom/internal/models"
)

// Mapper is the LLM side of standardization. *llm.Client satisfies it.
type Mapper interface {
	ProposeMapping(ctx context.Context, values []string, instructions, columnID string) ([]models.MappingEntry, error)
	RefineMapping(ctx context.Context, entries []models.MappingEntry, feedback []models.Feedback, columnID string) ([]models.MappingEntry, error)
}

// Service drives the mapping lifecycle: parallel generation, the
// feedback/refinement loop and acceptance.
type Service struct {
	mapper      Mapper
	maxParallel int
}

// NewService builds a standardizer with the given dispatch bound.
func NewService(mapper Mapper, maxParallel int) *Service {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Service{mapper: mapper, maxParallel: maxParallel}
}

type task struct {
	columnID     string
	groupID      string
	column       string
	instructions string
	values       []string
}

// buildTasks produces one mapping task per (group, member column) with
// the distinct cleaned values of that column across all datasets.
func buildTasks(groups []models.ColumnGroup, datasets []*models.Dataset) []task {
	var tasks []task
	for _, group := range groups {
		for _, col := range group.Columns {
			values := DistinctColumnValues(datasets, col)
			if len(values) == 0 {
				continue
			}
			tasks = append(tasks, task{
				columnID:     fmt.Sprintf("%s - %s", group.Name, col),
				groupID:      group.ID,
				column:       col,
				instructions: group.Instructions,
				values:       values,
			})
		}
	}
	return tasks
}

// DistinctColumnValues collects the distinct cleaned values of a column
// across datasets, in first-seen order.
func DistinctColumnValues(datasets []*models.Dataset, column string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, ds := range datasets {
		if !ds.HasColumn(column) || !ds.IsStringColumn(column) {
			continue
		}
		for _, v := range ds.ColumnValues(column) {
			cleaned := llm.CleanValue(v)
			if cleaned == "" || seen[cleaned] {
				continue
			}
			seen[cleaned] = true
			values = append(values, cleaned)
		}
	}
	return values
}

// GenerateAll fans the mapping tasks out to the model with bounded
// parallelism and collects the results as they complete. A failed column
// yields a mapping carrying the error (and the raw response when parsing
// failed) rather than aborting the batch.
func (s *Service) GenerateAll(ctx context.Context, groups []models.ColumnGroup, datasets []*models.Dataset) map[string]*models.Mapping {
	tasks := buildTasks(groups, datasets)
	results := make(map[string]*models.Mapping, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(s.maxParallel, len(tasks)))

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			mapping := &models.Mapping{
				ColumnID: t.columnID,
				Column:   t.column,
				GroupID:  t.groupID,
				Status:   models.StatusProposed,
			}
			entries, err := s.mapper.ProposeMapping(ctx, t.values, t.instructions, t.columnID)
			if err != nil {
				var pe *llm.ParseError
				if errors.As(err, &pe) {
					mapping.RawResponse = pe.Raw
				}
				mapping.Error = err.Error()
				log.Printf("[Standardizer] %s failed: %v", t.columnID, err)
			} else {
				mapping.Entries = entries
				log.Printf("[Standardizer] %s: %d mappings proposed", t.columnID, len(entries))
			}
			mu.Lock()
			results[t.columnID] = mapping
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// Refine runs one refinement iteration: every mapping with pending
// feedback is re-prompted; the rest stay untouched. Feedback is consumed
// either way: if the call fails the previous entries are kept and the
// error recorded on the mapping.
func (s *Service) Refine(ctx context.Context, mappings map[string]*models.Mapping) {
	for _, columnID := range sortedKeys(mappings) {
		mapping := mappings[columnID]
		if mapping.Status != models.StatusUnderReview {
			continue
		}
		refined, err := s.mapper.RefineMapping(ctx, mapping.Entries, mapping.PendingFeedback(), columnID)
		if err != nil {
			log.Printf("[Standardizer] refinement for %s failed, keeping previous mapping: %v", columnID, err)
			mapping.Error = err.Error()
			var pe *llm.ParseError
			if errors.As(err, &pe) {
				mapping.RawResponse = pe.Raw
			}
			refined = mapping.Entries
		} else {
			mapping.Error = ""
			mapping.RawResponse = ""
		}
		if err := mapping.ApplyRefinement(refined); err != nil {
			log.Printf("[Standardizer] could not apply refinement for %s: %v", columnID, err)
		}
	}
}

// AcceptAll finalizes every proposed mapping that has entries. Mappings
// still under review cause an error so pending feedback is not lost.
func (s *Service) AcceptAll(mappings map[string]*models.Mapping) error {
	for _, columnID := range sortedKeys(mappings) {
		mapping := mappings[columnID]
		if mapping.Status == models.StatusUnderReview {
			return fmt.Errorf("%s has unprocessed feedback; refine before accepting", columnID)
		}
	}
	for _, columnID := range sortedKeys(mappings) {
		mapping := mappings[columnID]
		if len(mapping.Entries) == 0 {
			continue
		}
		if err := mapping.Accept(); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]*models.Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
