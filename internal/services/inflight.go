package services

import "sync"

// inflightKeys counts ask attempts per idempotency key inside this process.
// The count distinguishes a concurrent duplicate (conflict) from a
// reservation orphaned by a dead process (safe to adopt and re-attempt
// generation).
type inflightKeys struct {
	mu sync.Mutex
	n  map[string]int
}

func newInflightKeys() *inflightKeys {
	return &inflightKeys{n: make(map[string]int)}
}

// enter increments the attempt count for key and returns the release func.
func (i *inflightKeys) enter(key string) func() {
	i.mu.Lock()
	i.n[key]++
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			if i.n[key] <= 1 {
				delete(i.n, key)
			} else {
				i.n[key]--
			}
			i.mu.Unlock()
		})
	}
}

// shared reports whether key is held by more than one attempt.
func (i *inflightKeys) shared(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.n[key] > 1
}
