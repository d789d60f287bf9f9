package ops

import (
	"fmt"
	"sync"
)

// Table is the process-wide registry of every op a worker can dispatch to,
// built once at startup and read-only thereafter.
type Table struct {
	mu  sync.RWMutex
	ops map[string]Op
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{ops: map[string]Op{}}
}

// Register adds op to the table. Registering the same name twice is a
// programmer error (two builtins or a builtin and an extension colliding),
// not a runtime condition, so it returns an error rather than silently
// overwriting — callers are expected to check it at startup.
func (t *Table) Register(op Op) error {
	if err := op.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.ops[op.Name]; exists {
		return fmt.Errorf("ops: op %q already registered", op.Name)
	}
	t.ops[op.Name] = op
	return nil
}

// MustRegister panics on a registration error; used for builtins assembled
// at package-init time where a collision is a build-time bug.
func (t *Table) MustRegister(op Op) {
	if err := t.Register(op); err != nil {
		panic(err)
	}
}

// Lookup returns the op registered under name.
func (t *Table) Lookup(name string) (Op, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[name]
	return op, ok
}

// Names returns every registered op name, for introspection/diagnostics.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}
	return names
}
