package fspath

import (
	"path"
	"path/filepath"
)

// AnchoredUnixPath is a path stemming from a specified root using Unix `/`
// separators — the shape tarballs, lockfiles, and npm package ids store
// paths in so they round-trip identically regardless of host OS.
type AnchoredUnixPath string

func (AnchoredUnixPath) anchoredPathStamp() {}
func (AnchoredUnixPath) unixPathStamp()     {}
func (AnchoredUnixPath) filePathStamp()     {}

// ToString returns the string representation of this path.
func (p AnchoredUnixPath) ToString() string {
	return string(p)
}

// ToSystemPath converts an AnchoredUnixPath to an AnchoredSystemPath.
func (p AnchoredUnixPath) ToSystemPath() AnchoredSystemPath {
	return AnchoredSystemPath(filepath.FromSlash(p.ToString()))
}

// ToUnixPath returns itself.
func (p AnchoredUnixPath) ToUnixPath() AnchoredUnixPath {
	return p
}

// Join appends relative path segments to this AnchoredUnixPath.
func (p AnchoredUnixPath) Join(additional ...RelativeUnixPath) AnchoredUnixPath {
	cast := RelativeUnixPathArray(additional)
	return AnchoredUnixPath(path.Join(p.ToString(), path.Join(cast.ToStringArray()...)))
}

// Dir returns the parent of this path.
func (p AnchoredUnixPath) Dir() AnchoredUnixPath {
	return AnchoredUnixPath(path.Dir(p.ToString()))
}
