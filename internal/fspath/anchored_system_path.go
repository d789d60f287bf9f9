package fspath

import "path/filepath"

// AnchoredSystemPath is a path stemming from a specified root using system
// separators. It is not aware of what its anchor is — a cache root, an
// os.dirFS, a materialized package folder — until RestoreAnchor is called.
type AnchoredSystemPath string

func (AnchoredSystemPath) anchoredPathStamp() {}
func (AnchoredSystemPath) systemPathStamp()   {}
func (AnchoredSystemPath) filePathStamp()     {}

// ToString returns the string representation of this path.
func (p AnchoredSystemPath) ToString() string {
	return string(p)
}

// ToStringDuringMigration returns the string representation of this path;
// see AbsoluteSystemPath.ToStringDuringMigration.
func (p AnchoredSystemPath) ToStringDuringMigration() string {
	return string(p)
}

// ToSystemPath returns itself.
func (p AnchoredSystemPath) ToSystemPath() AnchoredSystemPath {
	return p
}

// ToUnixPath converts an AnchoredSystemPath to an AnchoredUnixPath.
func (p AnchoredSystemPath) ToUnixPath() AnchoredUnixPath {
	return AnchoredUnixPath(filepath.ToSlash(p.ToString()))
}

// RelativeTo calculates the relative path between two AnchoredSystemPaths.
func (p AnchoredSystemPath) RelativeTo(basePath AnchoredSystemPath) (AnchoredSystemPath, error) {
	processed, err := filepath.Rel(basePath.ToString(), p.ToString())
	return AnchoredSystemPath(processed), err
}

// RestoreAnchor prefixes this AnchoredSystemPath with its anchor, producing
// an AbsoluteSystemPath that can be touched on disk.
func (p AnchoredSystemPath) RestoreAnchor(anchor AbsoluteSystemPath) AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Join(anchor.ToString(), p.ToString()))
}

// Join appends relative path segments to this AnchoredSystemPath.
func (p AnchoredSystemPath) Join(additional ...RelativeSystemPath) AnchoredSystemPath {
	cast := RelativeSystemPathArray(additional)
	return AnchoredSystemPath(filepath.Join(p.ToString(), filepath.Join(cast.ToStringArray()...)))
}

// Dir returns the parent of this path.
func (p AnchoredSystemPath) Dir() AnchoredSystemPath {
	return AnchoredSystemPath(filepath.Dir(p.ToString()))
}

// Base returns the final path element.
func (p AnchoredSystemPath) Base() string {
	return filepath.Base(p.ToString())
}
