package ingest

import "sync"

// keyedLocks serializes ingestion per (tenant, employee) so that context
// detection and record creation observe a consistent view of the day's
// punches. Cross-employee ingestion stays fully parallel. The map holds one
// mutex per distinct key ever seen: it grows with the active workforce, not
// with punch volume, so entries are never evicted.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m
}
