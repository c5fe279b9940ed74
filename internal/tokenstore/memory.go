package tokenstore

import "sync"

// MemoryStore is an in-memory Store. Used in tests and anywhere durability
// is not wanted.
type MemoryStore struct {
	mu    sync.Mutex
	creds Credentials
	set   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Credentials{}, ErrNotFound
	}
	return s.creds, nil
}

func (s *MemoryStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	s.set = false
	return nil
}
