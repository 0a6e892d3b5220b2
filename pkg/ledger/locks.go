package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// loanLocks hands out one mutex per loan ID. Entries are dropped once no
// goroutine holds or waits on them.
type loanLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*loanLock
}

type loanLock struct {
	mu   sync.Mutex
	refs int
}

func newLoanLocks() *loanLocks {
	return &loanLocks{locks: make(map[uuid.UUID]*loanLock)}
}

func (k *loanLocks) lock(id uuid.UUID) (unlock func()) {
	k.mu.Lock()
	ll, ok := k.locks[id]
	if !ok {
		ll = &loanLock{}
		k.locks[id] = ll
	}
	ll.refs++
	k.mu.Unlock()

	ll.mu.Lock()
	return func() {
		ll.mu.Unlock()

		k.mu.Lock()
		ll.refs--
		if ll.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *loanLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
