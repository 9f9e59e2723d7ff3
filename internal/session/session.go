// Package session holds in-memory portal state between navigations. State
// is keyed by project id with an explicit put/get/evict lifecycle; nothing
// is shared through package-level variables, so concurrent sessions never
// see each other's form state.
package session

import (
	"sync"
	"time"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

// Snapshot is the portal state cached for one project.
type Snapshot struct {
	Form      model.ProjectForm
	Geo       screening.Results
	Checklist []model.ChecklistItem
	StoredAt  time.Time
}

// Store caches snapshots per project id.
type Store struct {
	mu        sync.RWMutex
	byProject map[int64]Snapshot
	now       func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		byProject: map[int64]Snapshot{},
		now:       time.Now,
	}
}

// Put stores the snapshot for a project, replacing any previous one.
func (s *Store) Put(projectID int64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.StoredAt = s.now()
	s.byProject[projectID] = snap
}

// Get returns the cached snapshot for a project, if one exists.
func (s *Store) Get(projectID int64) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byProject[projectID]
	return snap, ok
}

// Evict drops the snapshot for a project. Called when navigation leaves
// the project or after a load replaces cached state with stored rows.
func (s *Store) Evict(projectID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byProject, projectID)
}

// EvictAll clears every cached snapshot.
func (s *Store) EvictAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProject = map[int64]Snapshot{}
}

// Len reports how many projects have cached state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byProject)
}
