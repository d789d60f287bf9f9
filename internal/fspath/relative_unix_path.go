package fspath

import (
	"path"
	"path/filepath"
)

// RelativeUnixPath is a relative path using Unix `/` separators.
type RelativeUnixPath string

func (RelativeUnixPath) relativePathStamp() {}
func (RelativeUnixPath) unixPathStamp()     {}
func (RelativeUnixPath) filePathStamp()     {}

// ToString returns the string representation of this path.
func (p RelativeUnixPath) ToString() string {
	return string(p)
}

// ToSystemPath converts a RelativeUnixPath to a RelativeSystemPath.
func (p RelativeUnixPath) ToSystemPath() RelativeSystemPath {
	return RelativeSystemPath(filepath.FromSlash(p.ToString()))
}

// ToUnixPath returns itself.
func (p RelativeUnixPath) ToUnixPath() RelativeUnixPath {
	return p
}

// Join appends relative path segments to this RelativeUnixPath.
func (p RelativeUnixPath) Join(additional ...RelativeUnixPath) RelativeUnixPath {
	cast := RelativeUnixPathArray(additional)
	return RelativeUnixPath(path.Join(p.ToString(), path.Join(cast.ToStringArray()...)))
}
