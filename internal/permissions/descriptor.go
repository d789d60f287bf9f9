// Package permissions implements the capability-based allow/deny model:
// typed descriptors for filesystem, network, environment, subprocess, and
// FFI access, checked at every op boundary before touching a resource.
package permissions

import (
	"fmt"

	"github.com/denoland/deno-sub011/internal/modpath"
)

// Kind identifies which capability a Descriptor names.
type Kind string

// Permission kinds.
const (
	KindRead Kind = "Read"
	KindWrite Kind = "Write"
	KindNet  Kind = "Net"
	KindEnv  Kind = "Env"
	KindRun  Kind = "Run"
	KindSys  Kind = "Sys"
	KindFfi  Kind = "Ffi"
)

// Descriptor is a single capability check request.
type Descriptor struct {
	Kind Kind
	// Path is populated for Read, Write, Ffi.
	Path modpath.AbsolutePath
	// Host is populated for Net, formatted "host" or "host:port".
	Host string
	// Key is populated for Env.
	Key string
	// Binary is populated for Run: either a bare name (PATH-searched) or a path.
	Binary string
	// SysKind is populated for Sys (e.g. "hostname", "loadavg", "osRelease").
	SysKind string
}

func (d Descriptor) subject() string {
	switch d.Kind {
	case KindRead, KindWrite, KindFfi:
		return d.Path.String()
	case KindNet:
		return d.Host
	case KindEnv:
		return d.Key
	case KindRun:
		return d.Binary
	case KindSys:
		return d.SysKind
	default:
		return ""
	}
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%s)", d.Kind, d.subject())
}
