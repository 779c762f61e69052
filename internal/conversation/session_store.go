package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultSessionMaxAge is how long an untouched session keeps its flow.
const DefaultSessionMaxAge = 24 * time.Hour

// ErrNilContext is returned when a store method receives a nil context.
var ErrNilContext = errors.New("context cannot be nil")

// SessionStore keeps the position of every chat session. Get returns an idle
// state for unknown or expired sessions.
type SessionStore interface {
	Get(ctx context.Context, sessionID int64) (*State, error)
	Set(ctx context.Context, sessionID int64, state *State) error
	Reset(ctx context.Context, sessionID int64) error
}

var _ SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore implements SessionStore in process memory.
// Sessions are lost on restart.
type MemorySessionStore struct {
	sessions        map[int64]State
	now             func() time.Time
	stopCh          chan struct{}
	cleanupInterval time.Duration
	maxAge          time.Duration
	mu              sync.RWMutex
	stopOnce        sync.Once
}

// NewMemorySessionStore creates a store that forgets sessions idle for longer
// than maxAge. A non-positive maxAge uses DefaultSessionMaxAge.
func NewMemorySessionStore(maxAge time.Duration) *MemorySessionStore {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}

	store := &MemorySessionStore{
		sessions:        make(map[int64]State),
		now:             time.Now,
		cleanupInterval: time.Hour,
		maxAge:          maxAge,
		stopCh:          make(chan struct{}),
	}

	go store.cleanupLoop()

	return store
}

// Get returns a copy of the session's state.
func (s *MemorySessionStore) Get(ctx context.Context, sessionID int64) (*State, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.sessions[sessionID]
	if !exists || s.expired(state) {
		return IdleState(), nil
	}

	stateCopy := state
	return &stateCopy, nil
}

// Set stores a copy of state.
func (s *MemorySessionStore) Set(ctx context.Context, sessionID int64, state *State) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stateCopy := *state
	stateCopy.UpdatedAt = s.now()
	s.sessions[sessionID] = stateCopy
	return nil
}

// Reset forgets the session.
func (s *MemorySessionStore) Reset(ctx context.Context, sessionID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Stop gracefully shuts down the cleanup loop.
func (s *MemorySessionStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *MemorySessionStore) expired(state State) bool {
	return s.now().Sub(state.UpdatedAt) > s.maxAge
}

// cleanupLoop periodically removes expired sessions.
func (s *MemorySessionStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemorySessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, state := range s.sessions {
		if s.expired(state) {
			delete(s.sessions, id)
		}
	}
}

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}
