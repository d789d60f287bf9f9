package ops

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Closer is anything a resource table entry must release when the
// resource is dropped: a timer that must be stopped, a child process that
// must be killed, an in-flight fetch that must be aborted.
type Closer interface {
	Close() error
}

// CloserFunc adapts a plain func into a Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// Resources is the per-worker table of live cancel handles, keyed by a
// uuid so JS holds an opaque string id rather than a pointer.
type Resources struct {
	mu    sync.Mutex
	items map[string]Closer
}

// NewResources returns an empty resource table.
func NewResources() *Resources {
	return &Resources{items: map[string]Closer{}}
}

// Add registers closer under a fresh id and returns it.
func (r *Resources) Add(closer Closer) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.items[id] = closer
	r.mu.Unlock()
	return id
}

// Close releases and removes the resource registered under id.
func (r *Resources) Close(id string) error {
	r.mu.Lock()
	closer, ok := r.items[id]
	if ok {
		delete(r.items, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("ops: no resource registered under id %q", id)
	}
	return closer.Close()
}

// CloseAll releases every still-open resource, in the worker-teardown path.
func (r *Resources) CloseAll() {
	r.mu.Lock()
	items := r.items
	r.items = map[string]Closer{}
	r.mu.Unlock()
	for _, closer := range items {
		_ = closer.Close()
	}
}
