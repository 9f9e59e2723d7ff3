package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()

	_, ok := s.Get(1)
	assert.False(t, ok)

	s.Put(1, Snapshot{Form: model.ProjectForm{Title: "First"}})
	s.Put(2, Snapshot{Form: model.ProjectForm{Title: "Second"}})
	assert.Equal(t, 2, s.Len())

	snap, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "First", snap.Form.Title)
	assert.False(t, snap.StoredAt.IsZero())

	// Replacing is a full overwrite, not a merge.
	s.Put(1, Snapshot{Form: model.ProjectForm{Title: "First Revised"}})
	snap, _ = s.Get(1)
	assert.Equal(t, "First Revised", snap.Form.Title)

	s.Evict(1)
	_, ok = s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	s.EvictAll()
	assert.Equal(t, 0, s.Len())
}

func TestStoreIsolatesProjects(t *testing.T) {
	s := NewStore()
	geo := screening.NewResults()
	geo.NEPAssist.Status = screening.StatusSuccess

	s.Put(1, Snapshot{Geo: geo})
	s.Put(2, Snapshot{Geo: screening.NewResults()})

	first, _ := s.Get(1)
	second, _ := s.Get(2)
	assert.Equal(t, screening.StatusSuccess, first.Geo.NEPAssist.Status)
	assert.Equal(t, screening.StatusIdle, second.Geo.NEPAssist.Status)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Put(id, Snapshot{Form: model.ProjectForm{Title: "P"}})
			s.Get(id)
			s.Evict(id)
		}(int64(i % 10))
	}
	wg.Wait()
}
