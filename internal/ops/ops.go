// Package ops implements the in-process op dispatcher the main worker uses
// to reach every privileged capability (filesystem, network, process,
// environment, timers, worker control) from JS. Each op is registered once,
// by name, with a declared sync/async kind and argument descriptor; a
// single Dispatch call selects it, runs the mandatory permission check,
// invokes the handler inside a recover boundary, and maps any error to the
// Deno.errors.<Kind> taxonomy the JS side expects.
package ops

import (
	"fmt"

	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/permissions"
)

// Kind distinguishes ops that return on the calling stack frame from ops
// whose result arrives later via a future/promise.
type Kind int

const (
	Sync Kind = iota
	Async
)

// Category groups ops for documentation, metrics, and the "deny whole
// category" shortcut some CLI flags use (e.g. --no-remote effectively
// denies Network for everything but already-cached specifiers).
type Category string

const (
	CategoryFilesystem   Category = "filesystem"
	CategoryNetwork      Category = "network"
	CategoryProcess      Category = "process"
	CategoryEnvironment  Category = "environment"
	CategoryTimers       Category = "timers"
	CategoryWorkerControl Category = "worker_control"
)

// ArgKind is the coarse JS-visible type of a single op argument, used only
// to describe the op's shape; the dispatcher does not validate argument
// presence or values against it (real value coercion happens at the V8
// boundary this package stands in for).
type ArgKind string

const (
	ArgString ArgKind = "string"
	ArgNumber ArgKind = "number"
	ArgBool   ArgKind = "bool"
	ArgBuffer ArgKind = "buffer"
	ArgObject ArgKind = "object"
)

// ArgSpec names and types one argument an op expects.
type ArgSpec struct {
	Name string
	Kind ArgKind
}

// Args is the deserialized argument bag a handler receives, keyed by
// ArgSpec.Name. A zero-copy byte buffer, when present, travels separately
// as Buffer so handlers that move bulk data (read/write) don't pay for a
// map entry per call.
type Args struct {
	Values map[string]any
	Buffer []byte
}

// String fetches a string-typed argument, returning "" if it's absent or
// of another type; it never panics.
func (a Args) String(name string) string {
	v, _ := a.Values[name].(string)
	return v
}

// Number fetches a float64-typed argument.
func (a Args) Number(name string) float64 {
	v, _ := a.Values[name].(float64)
	return v
}

// Bool fetches a bool-typed argument.
func (a Args) Bool(name string) bool {
	v, _ := a.Values[name].(bool)
	return v
}

// SyncHandler runs to completion on the calling goroutine and returns its
// result (or error) directly.
type SyncHandler func(ctx *Context, args Args) (any, error)

// AsyncHandler is scheduled on the worker pool; its result is delivered to
// the caller via the Future Dispatch returns for async ops.
type AsyncHandler func(ctx *Context, args Args) (any, error)

// Op is one registered capability.
type Op struct {
	Name     string
	Kind     Kind
	Category Category
	Args     []ArgSpec

	// Permission, when non-nil, derives the descriptor to check from the
	// call's Args before the handler runs. Ops with no resource to guard
	// (e.g. a pure computation) leave this nil.
	Permission func(args Args) permissions.Descriptor

	SyncFn  SyncHandler
	AsyncFn AsyncHandler
}

func (o Op) validate() error {
	if o.Name == "" {
		return fmt.Errorf("ops: op registered with empty name")
	}
	if o.Kind == Sync && o.SyncFn == nil {
		return fmt.Errorf("ops: sync op %q missing SyncFn", o.Name)
	}
	if o.Kind == Async && o.AsyncFn == nil {
		return fmt.Errorf("ops: async op %q missing AsyncFn", o.Name)
	}
	return nil
}

// mapError wraps a handler error (or panic) into the typed taxonomy the JS
// side switches on, defaulting to a generic wrap for errors the op didn't
// already produce as one of moderr's typed kinds.
func mapError(opName string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *moderr.PermissionDenied, *moderr.OSError, *moderr.ResolutionError,
		*moderr.IntegrityCheckFailed, *moderr.GraphError, *moderr.TypeCheckError, *moderr.Corrupt:
		return err
	default:
		return fmt.Errorf("op %q failed: %w", opName, err)
	}
}
