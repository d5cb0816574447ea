package services

import "sync"

// walletLocks serializes balance mutations per user. The embedded SQLite
// engine offers no row-level SELECT ... FOR UPDATE, so the per-user mutex
// provides the same guarantee: within one user's wallet, reserve, capture,
// refund, grant, and purchase are totally ordered; different users never
// contend. The DB check constraint on balance stays as the backstop.
type walletLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newWalletLocks() *walletLocks {
	return &walletLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for userID, creating it on first use. The
// returned function releases it.
func (w *walletLocks) lock(userID string) (unlock func()) {
	w.mu.Lock()
	m, ok := w.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		w.locks[userID] = m
	}
	w.mu.Unlock()

	m.Lock()
	return m.Unlock
}
