// Package moderr defines the typed error taxonomy the runtime surfaces to
// JS as Deno.errors.<Kind> exceptions and to the CLI as process exit codes.
// Errors are distinguished by Go type, not by matching on message strings,
// so callers can use errors.As to branch on kind.
package moderr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ExitCoder is implemented by errors that determine the process exit code.
type ExitCoder interface {
	error
	ExitCode() int
}

// PermissionDenied is returned when an op's permission check fails. It is
// never auto-retried.
type PermissionDenied struct {
	Kind       string // Read, Write, Net, Env, Run, Sys, Ffi
	Descriptor string // the human-readable descriptor, e.g. a path or host
	APIName    string // the op's public name, for the error message
}

func (e *PermissionDenied) Error() string {
	return fmt.Sprintf("Requires %s access to %q, run again with the appropriate --allow-%s flag (%s)",
		e.Kind, e.Descriptor, lowerKind(e.Kind), e.APIName)
}

func lowerKind(k string) string {
	switch k {
	case "Read":
		return "read"
	case "Write":
		return "write"
	case "Net":
		return "net"
	case "Env":
		return "env"
	case "Run":
		return "run"
	case "Sys":
		return "sys"
	case "Ffi":
		return "ffi"
	default:
		return k
	}
}

// ExitCode implements ExitCoder; uncaught errors of this kind exit 1.
func (e *PermissionDenied) ExitCode() int { return 1 }

// OSError thinly wraps an OS-level failure while preserving the errno-like
// kind for JS-side dispatch (NotFound, AlreadyExists, InvalidInput,
// Interrupted, UnexpectedEof, ConnectionRefused, TimedOut).
type OSError struct {
	Kind string
	Op   string
	Path string
	Err  error
}

func (e *OSError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s (%v)", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Op, e.Err)
}

func (e *OSError) Unwrap() error { return e.Err }

// ResolutionErrorKind enumerates npm resolution failure subkinds.
type ResolutionErrorKind string

// Resolution error subkinds.
const (
	NoMatchingVersion           ResolutionErrorKind = "NoMatchingVersion"
	UnmetPeerDep                ResolutionErrorKind = "UnmetPeerDep" // warning, not fatal
	RegistryManifestError       ResolutionErrorKind = "RegistryManifestError"
	PackageNotFoundFromReferrer ResolutionErrorKind = "PackageNotFoundFromReferrer"
	InvalidPackageTarget        ResolutionErrorKind = "InvalidPackageTarget"
)

// ResolutionError reports an npm dependency resolution failure.
type ResolutionError struct {
	Kind    ResolutionErrorKind
	Package string
	Detail  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s for %q: %s", e.Kind, e.Package, e.Detail)
}

// IsWarning reports whether this resolution error should be treated as a
// non-fatal diagnostic (currently just UnmetPeerDep).
func (e *ResolutionError) IsWarning() bool {
	return e.Kind == UnmetPeerDep
}

// IntegrityCheckFailed reports a subresource-integrity mismatch. It is
// always fatal for the package it names; when the expectation came from a
// lockfile it additionally maps to CLI exit code 10.
type IntegrityCheckFailed struct {
	Package       string
	Expected      string
	Actual        string
	FromLockfile  bool
	FetchedTarURL string
}

func (e *IntegrityCheckFailed) Error() string {
	return fmt.Sprintf("Integrity check failed for %q (from %s): expected %s, got %s",
		e.Package, e.FetchedTarURL, e.Expected, e.Actual)
}

// ExitCode implements ExitCoder.
func (e *IntegrityCheckFailed) ExitCode() int {
	if e.FromLockfile {
		return 10
	}
	return 1
}

// GraphError reports a module that failed to load, parse, or resolve,
// carrying the chain of importers that led to it.
type GraphError struct {
	Specifier string
	Referrers []string
	Cause     error
}

func (e *GraphError) Error() string {
	chain := ""
	for _, r := range e.Referrers {
		chain += " <- " + r
	}
	return fmt.Sprintf("module error at %s%s: %v", e.Specifier, chain, e.Cause)
}

func (e *GraphError) Unwrap() error { return e.Cause }

// ExitCode implements ExitCoder; graph errors exit 1.
func (e *GraphError) ExitCode() int { return 1 }

// Diagnostic is a single TypeScript compiler diagnostic.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d - %s", d.File, d.Line, d.Column, d.Message)
}

// TypeCheckError aggregates diagnostics produced by the external TS
// compiler. It wraps hashicorp/go-multierror so diagnostics can be
// accumulated across files without losing any of them.
type TypeCheckError struct {
	Diagnostics []Diagnostic
}

func (e *TypeCheckError) Error() string {
	merr := &multierror.Error{}
	for _, d := range e.Diagnostics {
		merr = multierror.Append(merr, fmt.Errorf("%s", d.String()))
	}
	return merr.Error()
}

// ExitCode implements ExitCoder.
func (e *TypeCheckError) ExitCode() int { return 1 }

// Corrupt reports lockfile or setup-cache corruption. The remedy text
// instructs the user to delete the offending file.
type Corrupt struct {
	File   string
	Reason string
}

func (e *Corrupt) Error() string {
	return fmt.Sprintf("%s is corrupt (%s); delete it and re-run to regenerate it", e.File, e.Reason)
}
