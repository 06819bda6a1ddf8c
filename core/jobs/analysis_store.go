package jobs

import (
	"sync"
	"time"
)

// AnalysisResult is one synchronous analysis outcome, retrievable by the
// result id handed back to the caller.
type AnalysisResult struct {
	ResultID     string
	AnalysisType string
	Result       map[string]interface{}
	Timestamp    time.Time
}

// AnalysisStore keeps synchronous analysis results for later retrieval.
// It is separate from the job registry because these results never pass
// through the job lifecycle; they are produced inline by the REST surface.
type AnalysisStore struct {
	mu        sync.Mutex
	items     map[string]*AnalysisResult
	retention int
}

// NewAnalysisStore creates a store with the default retention cap.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{
		items:     make(map[string]*AnalysisResult),
		retention: DefaultRetention,
	}
}

// Put stores a result and evicts the oldest entries past the cap.
func (s *AnalysisStore) Put(rec AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.ResultID] = &rec
	for len(s.items) > s.retention {
		var oldestID string
		for id, item := range s.items {
			if oldestID == "" || item.Timestamp.Before(s.items[oldestID].Timestamp) {
				oldestID = id
			}
		}
		delete(s.items, oldestID)
	}
}

// Get returns a copy of the stored result, if present.
func (s *AnalysisStore) Get(resultID string) (AnalysisResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[resultID]
	if !ok {
		return AnalysisResult{}, false
	}
	return *rec, true
}

// Len reports how many results are currently stored.
func (s *AnalysisStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
