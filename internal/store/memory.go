// ABOUTME: In-memory Store implementation for tests and the console harness
// ABOUTME: Mirrors the SQLite store's semantics including compare-and-set state updates

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicbots/courtbot/internal/registration"
)

// MemoryStore is a thread-safe, map-backed Store. It keeps the same
// compare-and-set and dedupe semantics as the SQLite store so driver and
// sweep tests exercise realistic persistence behavior.
type MemoryStore struct {
	mu   sync.Mutex
	regs map[string]*registration.Registration
	sent map[string]SentMessage
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		regs: make(map[string]*registration.Registration),
		sent: make(map[string]SentMessage),
	}
}

func sentKey(m SentMessage) string {
	return m.Contact + "\x00" + m.CommunicationType + "\x00" + m.Name + "\x00" +
		m.EventDate + "\x00" + m.EventDescription + "\x00" + m.CaseNumber
}

func cloneRegistration(reg *registration.Registration) *registration.Registration {
	copied := *reg
	return &copied
}

func (s *MemoryStore) CreateRegistration(_ context.Context, reg *registration.Registration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	s.regs[reg.ID] = cloneRegistration(reg)
	return reg.ID, nil
}

func (s *MemoryStore) GetRegistrationByID(_ context.Context, id string) (*registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (s *MemoryStore) GetRegistrationsByContact(_ context.Context, contact, communicationType string) ([]*registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*registration.Registration
	for _, reg := range s.regs {
		if reg.Contact == contact && reg.CommunicationType == communicationType {
			out = append(out, cloneRegistration(reg))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) GetRegistrationsByState(_ context.Context, state registration.State) ([]*registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*registration.Registration
	for _, reg := range s.regs {
		if reg.State == state {
			out = append(out, cloneRegistration(reg))
		}
	}
	sortByCreation(out)
	return out, nil
}

func sortByCreation(regs []*registration.Registration) {
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].ID < regs[j].ID
		}
		return regs[i].CreatedAt.Before(regs[j].CreatedAt)
	})
}

func (s *MemoryStore) UpdateRegistrationName(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.regs[id]
	if !ok {
		return ErrNotFound
	}
	reg.Name = name
	reg.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateRegistrationState(_ context.Context, id string, from, to registration.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.regs[id]
	if !ok {
		return ErrNotFound
	}
	if reg.State != from {
		return ErrStaleRegistration
	}
	reg.State = to
	reg.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetSentMessage(_ context.Context, m SentMessage) (*SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, ok := s.sent[sentKey(m)]
	if !ok {
		return nil, ErrNotFound
	}
	return &found, nil
}

func (s *MemoryStore) CreateSentMessage(_ context.Context, m SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sentKey(m)
	if _, exists := s.sent[key]; exists {
		return ErrDuplicateSentMessage
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.sent[key] = m
	return nil
}

func (s *MemoryStore) Close() error { return nil }
