package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iho/gobank/internal/domain"
)

// LockManager provides per-account exclusive access. Operations lock only
// the accounts they touch; unrelated accounts proceed concurrently.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]chan struct{}),
	}
}

func (m *LockManager) lockFor(id string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		m.locks[id] = l
	}

	return l
}

// Acquire takes the locks for the given account IDs, in ascending ID
// order (DEADLOCK PREVENTION), waiting at most until ctx expires. On
// success it returns a release function. An expired deadline releases
// everything taken so far and returns domain.ErrBusy; a cancelled
// context returns ctx.Err() so the caller's own cancellation is not
// misreported as lock contention.
func (m *LockManager) Acquire(ctx context.Context, ids ...string) (func(), error) {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Strings(sorted)

	held := make([]chan struct{}, 0, len(sorted))

	release := func() {
		// Reverse order, symmetric with acquisition.
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range sorted {
		l := m.lockFor(id)

		select {
		case l <- struct{}{}:
			held = append(held, l)
		case <-ctx.Done():
			release()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			return nil, domain.ErrBusy
		}
	}

	return release, nil
}
