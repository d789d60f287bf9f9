// Package fspath teaches the Go type system about the shapes of path the
// runtime juggles when it touches disk:
//   - AbsoluteSystemPath: absolute, including volume root, system separators.
//   - RelativeSystemPath: arbitrary relative segments, system separators.
//   - AnchoredSystemPath: absolute starting at some root the type itself
//     doesn't know about (a cache root, a materialized package folder),
//     system separators, stored without a leading separator for io/fs
//     compatibility.
//   - AnchoredUnixPath / RelativeUnixPath: the same shapes using `/` so
//     they round-trip portably through tarballs, lockfiles, and any other
//     on-disk or wire format that must not vary by host OS.
//
// Keeping these distinct means a relative path and an anchored path can
// never be passed to the wrong parameter by accident; the compiler enforces
// the conversion.
package fspath

import "path/filepath"

// AnchoredUnixPathArray enables transform operations on arrays of paths.
type AnchoredUnixPathArray []AnchoredUnixPath

// RelativeSystemPathArray enables transform operations on arrays of paths.
type RelativeSystemPathArray []RelativeSystemPath

// RelativeUnixPathArray enables transform operations on arrays of paths.
type RelativeUnixPathArray []RelativeUnixPath

// ToStringArray enables ergonomic operations on arrays of RelativeSystemPath.
func (source RelativeSystemPathArray) ToStringArray() []string {
	out := make([]string, len(source))
	for i, p := range source {
		out[i] = p.ToString()
	}
	return out
}

// ToStringArray enables ergonomic operations on arrays of RelativeUnixPath.
func (source RelativeUnixPathArray) ToStringArray() []string {
	out := make([]string, len(source))
	for i, p := range source {
		out[i] = p.ToString()
	}
	return out
}

// ToSystemPathArray converts every AnchoredUnixPath in the array to its
// AnchoredSystemPath equivalent.
func (source AnchoredUnixPathArray) ToSystemPathArray() []AnchoredSystemPath {
	out := make([]AnchoredSystemPath, len(source))
	for i, p := range source {
		out[i] = p.ToSystemPath()
	}
	return out
}

// The *FromUpstream casts below import a path string and stamp it with the
// appropriate type without validation. They exist to communicate intent:
// this is the one spot where a caller smuggles a path across the boundary
// from "just a string" into the world where its shape is tracked.

// AbsoluteSystemPathFromUpstream casts path to an AbsoluteSystemPath without
// checking it is actually absolute.
func AbsoluteSystemPathFromUpstream(path string) AbsoluteSystemPath {
	return AbsoluteSystemPath(path)
}

// AnchoredSystemPathFromUpstream casts path to an AnchoredSystemPath without
// checking its shape.
func AnchoredSystemPathFromUpstream(path string) AnchoredSystemPath {
	return AnchoredSystemPath(path)
}

// AnchoredUnixPathFromUpstream casts path to an AnchoredUnixPath without
// checking its shape.
func AnchoredUnixPathFromUpstream(path string) AnchoredUnixPath {
	return AnchoredUnixPath(path)
}

// RelativeSystemPathFromUpstream casts path to a RelativeSystemPath without
// checking its shape.
func RelativeSystemPathFromUpstream(path string) RelativeSystemPath {
	return RelativeSystemPath(path)
}

// RelativeUnixPathFromUpstream casts path to a RelativeUnixPath without
// checking its shape.
func RelativeUnixPathFromUpstream(path string) RelativeUnixPath {
	return RelativeUnixPath(path)
}

// CheckedToRelativeSystemPath validates that path is actually relative
// before stamping it as a RelativeSystemPath.
func CheckedToRelativeSystemPath(path string) (RelativeSystemPath, error) {
	if filepath.IsAbs(path) {
		return "", errNotRelative(path)
	}
	return RelativeSystemPath(path), nil
}

type errNotRelative string

func (e errNotRelative) Error() string {
	return string(e) + " is not a relative path"
}
