package assistant

import "sync"

// DefaultStoreCapacity is the number of results kept for replay.
const DefaultStoreCapacity = 32

// Store keeps the most recent results in memory for replay. When full, the
// oldest result is evicted. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	results  map[string]*Result
}

// NewStore returns a store holding at most capacity results.
// A non-positive capacity uses DefaultStoreCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &Store{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		results:  make(map[string]*Result, capacity),
	}
}

// Put stores r under r.ID, evicting the oldest entry when full.
// Storing an existing ID replaces it without changing its position.
func (s *Store) Put(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[r.ID]; ok {
		s.results[r.ID] = r
		return
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.results, oldest)
	}
	s.order = append(s.order, r.ID)
	s.results[r.ID] = r
}

// Get returns the result with id.
func (s *Store) Get(id string) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	return r, ok
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Recent returns up to n results, newest first.
func (s *Store) Recent(n int) []*Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	out := make([]*Result, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.results[s.order[i]])
	}
	return out
}
