package jobs

import (
	"sync"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// Results stores completed-job records, report content inlined, so clients
// can fetch output after a disconnect. It applies the same oldest-first
// eviction policy as the job registry, independently.
type Results struct {
	mu        sync.Mutex
	items     map[string]*models.CompletedJob
	retention int
}

// NewResults creates a result store with the default retention cap.
func NewResults() *Results {
	return &Results{
		items:     make(map[string]*models.CompletedJob),
		retention: DefaultRetention,
	}
}

// SetRetention overrides the stored-result cap.
func (s *Results) SetRetention(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = n
}

// Put stores a completed record and evicts the oldest entries past the cap.
func (s *Results) Put(rec *models.CompletedJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *rec
	s.items[rec.JobID] = &copied
	for len(s.items) > s.retention {
		var oldestID string
		for id, item := range s.items {
			if oldestID == "" || item.CompletionTime.Before(s.items[oldestID].CompletionTime) {
				oldestID = id
			}
		}
		delete(s.items, oldestID)
	}
}

// Get returns a copy of the stored record, if present.
func (s *Results) Get(jobID string) (models.CompletedJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[jobID]
	if !ok {
		return models.CompletedJob{}, false
	}
	return *rec, true
}

// ForClient returns copies of all records owned by one client.
func (s *Results) ForClient(clientID string) []models.CompletedJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CompletedJob
	for _, rec := range s.items {
		if rec.ClientID == clientID {
			out = append(out, *rec)
		}
	}
	return out
}

// Len reports how many records are currently stored.
func (s *Results) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
