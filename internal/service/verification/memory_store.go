package verification

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
)

// MemoryStore is a process-local session store guarded by a single mutex
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]verification.Session
	clock    clock.Clock
}

// NewMemoryStore creates an empty store. A nil clock uses the real clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]verification.Session),
		clock:    clock.OrReal(c),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *verification.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(s.TransactionID); ok {
		return fmt.Errorf("%w: transaction %s", verification.ErrSessionAlreadyOpen, s.TransactionID)
	}
	m.sessions[s.TransactionID] = *s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, transactionID string) (*verification.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(transactionID)
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", verification.ErrSessionNotFound, transactionID)
	}
	return &s, nil
}

func (m *MemoryStore) AtomicUpdate(_ context.Context, transactionID string, fn verification.UpdateFunc) (*verification.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(transactionID)
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", verification.ErrSessionNotFound, transactionID)
	}
	if err := fn(&s); err != nil {
		return nil, err
	}
	m.sessions[transactionID] = s
	return &s, nil
}

// live returns a copy of the unexpired session, evicting an expired one.
// Callers hold m.mu.
func (m *MemoryStore) live(transactionID string) (verification.Session, bool) {
	s, ok := m.sessions[transactionID]
	if !ok {
		return verification.Session{}, false
	}
	if s.IsExpired(m.clock.Now()) {
		delete(m.sessions, transactionID)
		return verification.Session{}, false
	}
	return s, true
}
