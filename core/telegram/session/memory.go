package session

import (
	"context"
	"sync"
)

type chatLock struct {
	sem  chan struct{}
	refs int
}

// MemoryStore keeps sessions in process memory. Its state is lost on restart
// and is not shared between instances. It never returns an error except from Lock.
type MemoryStore struct {
	capacity int

	mu       sync.Mutex
	sessions map[int64][]int
	locks    map[int64]*chatLock
}

// NewMemoryStore constructs a MemoryStore bounded to capacity ids per chat.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		sessions: make(map[int64][]int),
		locks:    make(map[int64]*chatLock),
	}
}

// Get returns a copy of the visible ids for chatID.
func (s *MemoryStore) Get(_ context.Context, chatID int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int{}, s.sessions[chatID]...), nil
}

// Append records id and returns evicted ids.
func (s *MemoryStore) Append(_ context.Context, chatID int64, id int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, evicted := appendBounded(s.sessions[chatID], id, s.capacity)
	s.sessions[chatID] = next
	return evicted, nil
}

// Clear drops the chat's ids and returns them.
func (s *MemoryStore) Clear(_ context.Context, chatID int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.sessions[chatID]
	delete(s.sessions, chatID)
	return append([]int{}, prior...), nil
}

// Replace swaps the chat's ids for the single id.
func (s *MemoryStore) Replace(_ context.Context, chatID int64, id int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.sessions[chatID]
	s.sessions[chatID] = []int{id}
	return append([]int{}, prior...), nil
}

// Lock acquires the per-chat semaphore. The returned unlock is safe to call more than once.
func (s *MemoryStore) Lock(ctx context.Context, chatID int64) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &chatLock{sem: make(chan struct{}, 1)}
		s.locks[chatID] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.release(chatID, l)
		return nil, lockErr(ctx)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.release(chatID, l)
		})
	}, nil
}

func (s *MemoryStore) release(chatID int64, l *chatLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, chatID)
	}
}

