// Package serial provides the per-asset serialization boundary shared by the
// lock ledger and the ownership registry.
//
// Every state-changing operation on an asset (lock, unlock, approve, transfer,
// burn) runs inside [Keyed.Do] for that asset, so no two of them interleave
// partially. Operations on different assets proceed in parallel.
//
// Keyed is not reentrant: code running inside Do must not call Do again for
// the same key. Transfer hooks are invoked with the key already held and must
// only use read paths and component-local mutexes.
package serial

import "sync"

// entry is a reference-counted mutex for one key.
type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed is a set of mutexes indexed by key. Entries are created on demand
// and dropped when no goroutine holds or waits on them.
// The zero value is ready for use.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Keyed.
func New() *Keyed {
	return &Keyed{}
}

// Lock acquires the mutex for key.
func (k *Keyed) Lock(key string) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*entry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that is not held panics.
func (k *Keyed) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("serial: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

// Do runs fn while holding the mutex for key and returns its error.
// A nil Keyed runs fn directly.
func (k *Keyed) Do(key string, fn func() error) error {
	if k == nil {
		return fn()
	}
	k.Lock(key)
	defer k.Unlock(key)
	return fn()
}
