package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nexusedu/exam-agent/internal/model"
)

// MemoryStore is an in-process Store for tests. Values round-trip through
// JSON so tests exercise the same serialization as the durable drivers.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	pendings map[string][]byte

	// SessionSaves counts SaveSession calls, for snapshot-cadence assertions.
	SessionSaves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		pendings: make(map[string][]byte),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveSession(_ context.Context, studentID string, snap *model.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[studentID] = payload
	s.SessionSaves++
	return nil
}

func (s *MemoryStore) LoadSession(_ context.Context, studentID string) (*model.SessionSnapshot, error) {
	s.mu.Lock()
	payload, ok := s.sessions[studentID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var snap model.SessionSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MemoryStore) ClearSession(_ context.Context, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, studentID)
	return nil
}

func (s *MemoryStore) SavePending(_ context.Context, studentID string, pending *model.PendingSubmission) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendings[studentID] = payload
	return nil
}

func (s *MemoryStore) LoadPending(_ context.Context, studentID string) (*model.PendingSubmission, error) {
	s.mu.Lock()
	payload, ok := s.pendings[studentID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var pending model.PendingSubmission
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

func (s *MemoryStore) ClearPending(_ context.Context, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendings, studentID)
	return nil
}
