package fspath

import "path/filepath"

// RelativeSystemPath is a relative path using system separators.
type RelativeSystemPath string

func (RelativeSystemPath) relativePathStamp() {}
func (RelativeSystemPath) systemPathStamp()   {}
func (RelativeSystemPath) filePathStamp()     {}

// ToString returns the string representation of this path.
func (p RelativeSystemPath) ToString() string {
	return string(p)
}

// ToSystemPath returns itself.
func (p RelativeSystemPath) ToSystemPath() RelativeSystemPath {
	return p
}

// ToUnixPath converts a RelativeSystemPath to a RelativeUnixPath.
func (p RelativeSystemPath) ToUnixPath() RelativeUnixPath {
	return RelativeUnixPath(filepath.ToSlash(p.ToString()))
}

// Join appends relative path segments to this RelativeSystemPath.
func (p RelativeSystemPath) Join(additional ...RelativeSystemPath) RelativeSystemPath {
	cast := RelativeSystemPathArray(additional)
	return RelativeSystemPath(filepath.Join(p.ToString(), filepath.Join(cast.ToStringArray()...)))
}
