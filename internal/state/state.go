package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cleanroom/internal/models"
)

// Session is the explicit per-user state object carried between pipeline
// stages: loaded datasets, column groups, mappings and workflow flags.
type Session struct {
	mu sync.RWMutex

	ID        string
	CreatedAt time.Time

	datasets []*models.Dataset

	groups     []models.ColumnGroup
	autoGroups []models.ColumnGroup
	customSeq  int
	analyzed   bool

	mappings  map[string]*models.Mapping
	generated bool
	iteration int
	finished  bool
}

func newSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		mappings:  make(map[string]*models.Mapping),
	}
}

// AddDataset appends a loaded dataset, replacing any previous dataset of
// the same name (re-uploads win).
func (s *Session) AddDataset(ds *models.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.datasets {
		if existing.Name == ds.Name {
			s.datasets[i] = ds
			return
		}
	}
	s.datasets = append(s.datasets, ds)
}

// Datasets returns the loaded datasets in upload order.
func (s *Session) Datasets() []*models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Dataset(nil), s.datasets...)
}

// SetGroups stores the automatic grouping result and marks the analysis
// step complete. The originals are kept for reset.
func (s *Session) SetGroups(groups []models.ColumnGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append([]models.ColumnGroup(nil), groups...)
	s.autoGroups = append([]models.ColumnGroup(nil), groups...)
	s.customSeq = 0
	s.analyzed = true
}

// Groups returns the current column groups.
func (s *Session) Groups() []models.ColumnGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ColumnGroup(nil), s.groups...)
}

// UpdateGroup replaces the member selection and instructions of a group.
func (s *Session) UpdateGroup(groupID string, columns []string, instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.groups {
		if s.groups[i].ID == groupID {
			s.groups[i].Columns = append([]string(nil), columns...)
			s.groups[i].Instructions = instructions
			return nil
		}
	}
	return fmt.Errorf("unknown group %q", groupID)
}

// AddCustomGroup appends a user-defined group and returns it.
func (s *Session) AddCustomGroup(columns []string) models.ColumnGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	group := models.ColumnGroup{
		ID:      fmt.Sprintf("custom_cluster_%d", s.customSeq),
		Name:    fmt.Sprintf("Custom Column Group %d", s.customSeq+1),
		Columns: append([]string(nil), columns...),
		Custom:  true,
	}
	s.customSeq++
	s.groups = append(s.groups, group)
	return group
}

// ResetGroups drops all customizations and restores the automatic
// clusters.
func (s *Session) ResetGroups() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append([]models.ColumnGroup(nil), s.autoGroups...)
	s.customSeq = 0
}

// Analyzed reports whether grouping has run.
func (s *Session) Analyzed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzed
}

// SetMappings stores a fresh generation result and resets the iteration
// counter.
func (s *Session) SetMappings(mappings map[string]*models.Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = mappings
	s.generated = true
	s.iteration = 0
	s.finished = false
}

// Mappings returns the live mapping set. The map is owned by the
// session; callers mutate individual mappings through their methods.
func (s *Session) Mappings() map[string]*models.Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mappings
}

// Mapping returns one mapping by column ID.
func (s *Session) Mapping(columnID string) (*models.Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[columnID]
	return m, ok
}

// MappingsGenerated reports whether initial generation has run.
func (s *Session) MappingsGenerated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generated
}

// BumpIteration advances the refinement iteration counter.
func (s *Session) BumpIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

// Iteration returns the current refinement iteration.
func (s *Session) Iteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// MarkFinished flags the session as accepted.
func (s *Session) MarkFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

// Finished reports whether the mappings were accepted.
func (s *Session) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

// Store manages sessions by ID. A default session backs clients that
// never send a session header.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create makes a new session and registers it.
func (st *Store) Create() *Session {
	s := newSession()
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

const defaultSessionKey = "default"

// GetOrDefault resolves the session for a request: the named session if
// the ID is known, otherwise the lazily created default session.
func (st *Store) GetOrDefault(id string) *Session {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s
		}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[defaultSessionKey]; ok {
		return s
	}
	s := newSession()
	st.sessions[defaultSessionKey] = s
	return s
}

// Reset replaces the session under the given request ID with a fresh one
// and returns it.
func (st *Store) Reset(id string) *Session {
	key := id
	if key == "" {
		key = defaultSessionKey
	}
	s := newSession()
	st.mu.Lock()
	st.sessions[key] = s
	st.mu.Unlock()
	return s
}
