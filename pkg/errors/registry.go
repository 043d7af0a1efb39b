package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrDuplicateID is returned by Insert when the id is already present.
	ErrDuplicateID = stderrors.New("duplicate error id")

	// ErrEmptyID is returned by Insert for a record without an id.
	ErrEmptyID = stderrors.New("error id is required")
)

// Registry owns the mapping of error ids to records. It is the single
// source of truth for what is currently reported.
type Registry struct {
	records map[string]ErrorRecord
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]ErrorRecord),
	}
}

// Insert adds a record keyed by its id. An existing record is never
// overwritten.
func (r *Registry) Insert(rec ErrorRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	r.records[rec.ID] = rec
	return nil
}

// Get returns the record with the given id
func (r *Registry) Get(id string) (ErrorRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	return rec, ok
}

// Delete removes the record if present. Deleting an unknown id is a no-op;
// the return value reports whether anything was removed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

// Clear removes all records and returns how many there were
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records)
	r.records = make(map[string]ErrorRecord)
	return n
}

// All returns a snapshot of the current records, oldest first.
// The slice is freshly allocated and is not affected by later mutations.
func (r *Registry) All() []ErrorRecord {
	r.mu.RLock()
	result := make([]ErrorRecord, 0, len(r.records))
	for _, rec := range r.records {
		result = append(result, rec)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// Len returns the number of records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// PurgeOlderThan removes every record whose age at now is strictly greater
// than window. A record exactly at the boundary is kept. It returns the
// number of records removed.
func (r *Registry) PurgeOlderThan(window time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.records {
		if now.Sub(rec.Timestamp) > window {
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

// HighestLevel returns the most severe level currently registered
func (r *Registry) HighestLevel() Level {
	return HighestLevel(r.All())
}

// Stats returns a count of records per level
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		Total:   len(r.records),
		ByLevel: make(map[Level]int),
	}
	for _, rec := range r.records {
		stats.ByLevel[rec.Level]++
	}
	return stats
}

// RegistryStats holds registry statistics
type RegistryStats struct {
	Total   int           `json:"total"`
	ByLevel map[Level]int `json:"by_level"`
}
