package resource

import "sync"

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu          sync.RWMutex
	generations map[string]map[string]*Response
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{generations: make(map[string]map[string]*Response)}
}

// Open ensures a generation exists.
func (s *MemoryStore) Open(generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.generations[generation]; !ok {
		s.generations[generation] = make(map[string]*Response)
	}
	return nil
}

// Match returns the stored response for key, or ErrNoMatch.
func (s *MemoryStore) Match(generation, key string) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.generations[generation]
	if !ok {
		return nil, ErrNoMatch
	}
	resp, ok := entries[key]
	if !ok {
		return nil, ErrNoMatch
	}
	return resp, nil
}

// Put stores resp under key.
func (s *MemoryStore) Put(generation, key string, resp *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.generations[generation]
	if !ok {
		entries = make(map[string]*Response)
		s.generations[generation] = entries
	}
	entries[key] = resp
	return nil
}

// Delete removes a generation wholesale.
func (s *MemoryStore) Delete(generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.generations, generation)
	return nil
}

// ListGenerations enumerates stored generation names.
func (s *MemoryStore) ListGenerations() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	return names, nil
}

// EntryCount returns the number of entries in a generation.
func (s *MemoryStore) EntryCount(generation string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.generations[generation])
}
