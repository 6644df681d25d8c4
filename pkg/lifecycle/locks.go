package lifecycle

import "sync"

// threadLocks hands out one mutex per ticket thread. Entries are dropped once nobody holds or waits on them.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// lock locks the thread and returns the unlock function.
func (t *threadLocks) lock(threadID string) func() {
	t.mu.Lock()
	l, ok := t.locks[threadID]
	if !ok {
		l = new(threadLock)
		t.locks[threadID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, threadID)
		}
		t.mu.Unlock()
	}
}

func (t *threadLocks) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
