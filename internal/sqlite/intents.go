package sqlite

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// intentTable records which units of work are touching which owners. A
// cascade delete holds an exclusive intent on every owner it removes until
// it finishes; appends, membership changes and links hold shared intents.
// The table is process-wide and keyed by store so two backends attached
// to the same database see each other's intents.
type intentTable struct {
	mu     sync.Mutex
	owners map[string]*intent
}

type intent struct {
	exclusive string
	shared    map[string]int
}

var intents = &intentTable{owners: make(map[string]*intent)}

// claimShared registers uow as a reader of key. It fails with ErrOwnerGone
// when another unit of work is deleting the owner.
func (t *intentTable) claimShared(uow, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	in := t.owners[key]
	if in == nil {
		in = &intent{shared: make(map[string]int)}
		t.owners[key] = in
	}
	if in.exclusive != "" && in.exclusive != uow {
		return fmt.Errorf("%w: %s is being deleted", types.ErrOwnerGone, key)
	}
	in.shared[uow]++
	return nil
}

// claimExclusive registers uow as the deleter of key. It fails with
// ErrTransient when any other unit of work holds an intent on it.
func (t *intentTable) claimExclusive(uow, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	in := t.owners[key]
	if in == nil {
		in = &intent{shared: make(map[string]int)}
		t.owners[key] = in
	}
	if in.exclusive != "" && in.exclusive != uow {
		return fmt.Errorf("%w: %s is being deleted", types.ErrTransient, key)
	}
	for holder := range in.shared {
		if holder != uow {
			return fmt.Errorf("%w: %s is in use", types.ErrTransient, key)
		}
	}
	in.exclusive = uow
	return nil
}

// release drops every intent uow holds on keys.
func (t *intentTable) release(uow string, keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range keys {
		in := t.owners[key]
		if in == nil {
			continue
		}
		delete(in.shared, uow)
		if in.exclusive == uow {
			in.exclusive = ""
		}
		if in.exclusive == "" && len(in.shared) == 0 {
			delete(t.owners, key)
		}
	}
}
