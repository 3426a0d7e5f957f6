package swap

import (
	"strings"
	"sync"
)

// lockset hands out one exclusive token per account. Acquisition never blocks.
type lockset struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLockset() *lockset {
	return &lockset{held: make(map[string]struct{})}
}

// TryAcquire returns a release func, or false if the account is already held.
// The release func is safe to call more than once.
func (s *lockset) TryAcquire(account string) (func(), bool) {
	key := strings.ToLower(account)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.held[key]; busy {
		return nil, false
	}
	s.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.held, key)
			s.mu.Unlock()
		})
	}, true
}

// Held reports whether account currently holds a token
func (s *lockset) Held(account string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.held[strings.ToLower(account)]
	return ok
}
