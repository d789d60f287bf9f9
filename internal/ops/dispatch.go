package ops

import (
	"fmt"

	"github.com/denoland/deno-sub011/internal/permissions"
	"github.com/hashicorp/go-hclog"
)

// Context carries the per-worker state an op handler needs: the
// permission container to check against, a logger, and the resource table
// backing cancel handles (timers, in-flight fetches, child processes).
type Context struct {
	Perms     *permissions.Container
	Logger    hclog.Logger
	Resources *Resources
	APIName   string
}

// Dispatcher selects ops by name out of a Table and runs them against a
// Context, the way a single "dispatch" call from JS picks an op by enum
// and passes it a deserialized argument bag.
type Dispatcher struct {
	Table *Table
}

// NewDispatcher builds a Dispatcher over table.
func NewDispatcher(table *Table) *Dispatcher {
	return &Dispatcher{Table: table}
}

// Termination is returned in place of an ordinary error when an op body
// panics. It is never one of moderr's typed Deno.errors.<Kind> exceptions:
// callers must propagate it as an uncatchable worker termination (the
// spec's "panics in op bodies... converted to an uncatchable termination"),
// not surface it to JS as a catchable exception.
type Termination struct {
	Op    string
	Panic any
}

func (t *Termination) Error() string {
	return fmt.Sprintf("op %q panicked: %v", t.Op, t.Panic)
}

// Future is what an async op call returns: a one-shot channel the caller
// reads once, mirroring the promise a real async op resolves in JS.
type Future struct {
	done chan asyncResult
}

type asyncResult struct {
	value any
	err   error
}

// Await blocks until the async op completes and returns its result.
func (f *Future) Await() (any, error) {
	r := <-f.done
	return r.value, r.err
}

// DispatchSync runs a Sync op to completion and returns its result
// directly. Calling it on an Async-kind op is a caller bug, reported as an
// error rather than silently running it synchronously (that would hide a
// blocking call on a path the caller expects never to block).
func (d *Dispatcher) DispatchSync(ctx *Context, name string, args Args) (result any, err error) {
	op, ok := d.Table.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("ops: unknown op %q", name)
	}
	if op.Kind != Sync {
		return nil, fmt.Errorf("ops: op %q is async, call DispatchAsync", name)
	}
	return d.runSync(ctx, op, args)
}

// DispatchAsync schedules an Async op on the worker pool (here: a plain
// goroutine, standing in for the real event-loop-integrated future) and
// returns a Future the caller awaits once the corresponding JS promise is
// actually needed.
func (d *Dispatcher) DispatchAsync(ctx *Context, name string, args Args) (*Future, error) {
	op, ok := d.Table.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("ops: unknown op %q", name)
	}
	if op.Kind != Async {
		return nil, fmt.Errorf("ops: op %q is sync, call DispatchSync", name)
	}
	future := &Future{done: make(chan asyncResult, 1)}
	go func() {
		value, err := d.runAsyncBody(ctx, op, args)
		future.done <- asyncResult{value: value, err: err}
	}()
	return future, nil
}

func (d *Dispatcher) runSync(ctx *Context, op Op, args Args) (result any, err error) {
	if op.Permission != nil && ctx.Perms != nil {
		descriptor := op.Permission(args)
		if checkErr := ctx.Perms.Check(descriptor, op.Name); checkErr != nil {
			return nil, checkErr
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &Termination{Op: op.Name, Panic: r}
			if ctx.Logger != nil {
				ctx.Logger.Error("op panic, terminating worker", "op", op.Name, "panic", r)
			}
		}
	}()
	result, err = op.SyncFn(ctx, args)
	return result, mapError(op.Name, err)
}

func (d *Dispatcher) runAsyncBody(ctx *Context, op Op, args Args) (result any, err error) {
	if op.Permission != nil && ctx.Perms != nil {
		descriptor := op.Permission(args)
		if checkErr := ctx.Perms.Check(descriptor, op.Name); checkErr != nil {
			return nil, checkErr
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &Termination{Op: op.Name, Panic: r}
			if ctx.Logger != nil {
				ctx.Logger.Error("op panic, terminating worker", "op", op.Name, "panic", r)
			}
		}
	}()
	result, err = op.AsyncFn(ctx, args)
	return result, mapError(op.Name, err)
}
