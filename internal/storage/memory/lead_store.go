// Package memory provides an in-process lead repository for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fikircreative/prospector/internal/lead"
)

// LeadStore keeps leads in a slice guarded by a mutex.
type LeadStore struct {
	mu      sync.RWMutex
	leads   []lead.StoredLead
	byPlace map[string]struct{}
	ids     lead.IDGenerator
	clock   lead.Clock

	// FailWith makes every InsertMany call return this error.
	FailWith error
}

// NewLeadStore constructs a LeadStore.
func NewLeadStore(ids lead.IDGenerator, clock lead.Clock) *LeadStore {
	return &LeadStore{
		byPlace: make(map[string]struct{}),
		ids:     ids,
		clock:   clock,
	}
}

// InsertMany stores leads whose place ID is not already present.
func (s *LeadStore) InsertMany(_ context.Context, leads []lead.Lead) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	now := s.clock.Now()
	var fresh []lead.StoredLead
	for _, l := range lead.Dedupe(leads) {
		if _, exists := s.byPlace[l.PlaceID]; exists {
			continue
		}
		id, err := s.ids.NewID()
		if err != nil {
			return 0, fmt.Errorf("generate lead id: %w", err)
		}
		fresh = append(fresh, lead.StoredLead{Lead: l, ID: id, CreatedAt: now})
	}
	// all or nothing, like the SQL stores
	for _, sl := range fresh {
		s.byPlace[sl.PlaceID] = struct{}{}
	}
	s.leads = append(s.leads, fresh...)
	return int64(len(fresh)), nil
}

// ListRecent returns up to limit leads, newest first.
func (s *LeadStore) ListRecent(_ context.Context, limit int) ([]lead.StoredLead, error) {
	if limit < 0 {
		return nil, errors.New("limit must be non-negative")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.leads))
	out := make([]lead.StoredLead, 0, n)
	for i := len(s.leads) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.leads[i])
	}
	return out, nil
}

// Len returns the number of stored leads.
func (s *LeadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

// Ping always succeeds.
func (s *LeadStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *LeadStore) Close() error { return nil }
