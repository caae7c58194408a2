// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/docbox/internal/triage"
)

func nowUTC() time.Time { return time.Now().UTC() }

// Store holds state vectors in memory. Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	vectors   map[string]*triage.StateVector // vector ID -> vector
	bySource  map[string]string              // source message ID -> vector ID
	events    []*triage.MessageEvent
	overrides map[string]triage.Zone // sender key -> forced zone
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		vectors:   make(map[string]*triage.StateVector),
		bySource:  make(map[string]string),
		overrides: make(map[string]triage.Zone),
	}
}

// Create inserts a state vector, enforcing source-message uniqueness.
func (s *Store) Create(_ context.Context, v *triage.StateVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.bySource[v.SourceMessageID]; dup {
		return triage.ErrDuplicateSource
	}
	cp := *v
	s.vectors[v.ID] = &cp
	s.bySource[v.SourceMessageID] = v.ID
	return nil
}

// Get retrieves a state vector by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.StateVector, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[id]
	if !ok {
		return nil, false, nil
	}
	cp := *v
	return &cp, true, nil
}

// ListOpen returns copies of all vectors in an open lifecycle state,
// optionally restricted to an owner role or origin id.
func (s *Store) ListOpen(_ context.Context, ownerFilter string) ([]*triage.StateVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*triage.StateVector
	for _, v := range s.vectors {
		if !v.Lifecycle.Open() {
			continue
		}
		if ownerFilter != "" && v.OwnerRole != ownerFilter && v.OriginID != ownerFilter {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateLifecycle sets lifecycle state and owner, bumping UpdatedAt.
func (s *Store) UpdateLifecycle(_ context.Context, id string, state triage.LifecycleState, ownerRole string) (*triage.StateVector, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vectors[id]
	if !ok {
		return nil, false, nil
	}
	v.Lifecycle = state
	if ownerRole != "" {
		v.OwnerRole = ownerRole
	}
	v.UpdatedAt = nowUTC()
	cp := *v
	return &cp, true, nil
}

// AppendEvent records an audit event.
func (s *Store) AppendEvent(_ context.Context, ev *triage.MessageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.events = append(s.events, &cp)
	return nil
}

// Events returns copies of all recorded events for a vector, in append
// order. Test helper; not part of triage.Store.
func (s *Store) Events(vectorID string) []*triage.MessageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*triage.MessageEvent
	for _, ev := range s.events {
		if ev.VectorID == vectorID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out
}

// GetOverride looks up a learned sender override.
func (s *Store) GetOverride(_ context.Context, senderKey string) (triage.Zone, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zone, ok := s.overrides[senderKey]
	return zone, ok, nil
}

// SetOverride upserts a sender override. Last writer wins.
func (s *Store) SetOverride(_ context.Context, senderKey string, zone triage.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[senderKey] = zone
	return nil
}
