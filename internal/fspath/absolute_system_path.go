package fspath

import (
	"os"
	"path/filepath"
)

// dirPermissions are applied to directories created on a package's behalf.
const dirPermissions = os.ModeDir | 0775

// AbsoluteSystemPath is a root-relative path using system separators. It
// carries the full set of filesystem operations: every path that actually
// touches disk (cache roots, materialized package directories, restored
// tarball entries) ends up as one of these before the syscall happens.
type AbsoluteSystemPath string

func (AbsoluteSystemPath) absolutePathStamp() {}
func (AbsoluteSystemPath) systemPathStamp()   {}
func (AbsoluteSystemPath) filePathStamp()     {}

// ToString returns the string representation of this path.
func (p AbsoluteSystemPath) ToString() string {
	return string(p)
}

// ToStringDuringMigration returns the string representation of this path;
// call sites using this are flagged as needing a future typed-path pass
// instead of reaching back for the raw string.
func (p AbsoluteSystemPath) ToStringDuringMigration() string {
	return string(p)
}

// RelativeTo calculates the relative path between two AbsoluteSystemPaths.
func (p AbsoluteSystemPath) RelativeTo(basePath AbsoluteSystemPath) (AnchoredSystemPath, error) {
	processed, err := filepath.Rel(basePath.ToString(), p.ToString())
	return AnchoredSystemPath(processed), err
}

// ContainsPath reports whether target is contained within p.
func (p AbsoluteSystemPath) ContainsPath(target AbsoluteSystemPath) (bool, error) {
	rel, err := filepath.Rel(p.ToString(), target.ToString())
	if err != nil {
		return false, err
	}
	return rel != ".." && !hasDotDotPrefix(rel), nil
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// Join appends relative path segments to this AbsoluteSystemPath.
func (p AbsoluteSystemPath) Join(additional ...RelativeSystemPath) AbsoluteSystemPath {
	cast := RelativeSystemPathArray(additional)
	return AbsoluteSystemPath(filepath.Join(p.ToString(), filepath.Join(cast.ToStringArray()...)))
}

// Dir returns the parent directory.
func (p AbsoluteSystemPath) Dir() AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Dir(p.ToString()))
}

// Base returns the final path element.
func (p AbsoluteSystemPath) Base() string {
	return filepath.Base(p.ToString())
}

// Ext returns the file extension, including the leading dot.
func (p AbsoluteSystemPath) Ext() string {
	return filepath.Ext(p.ToString())
}

// EnsureDir ensures the directory containing this path exists.
func (p AbsoluteSystemPath) EnsureDir() error {
	return os.MkdirAll(filepath.Dir(p.ToString()), dirPermissions)
}

// MkdirAll creates this path and any necessary parents as directories.
func (p AbsoluteSystemPath) MkdirAll(mode os.FileMode) error {
	return os.MkdirAll(p.ToString(), mode)
}

// Open opens the file at this path for reading.
func (p AbsoluteSystemPath) Open() (*os.File, error) {
	return os.Open(p.ToString())
}

// OpenFile implements os.OpenFile for this path.
func (p AbsoluteSystemPath) OpenFile(flags int, mode os.FileMode) (*os.File, error) {
	return os.OpenFile(p.ToString(), flags, mode)
}

// Create creates the file at this path, truncating it if it already exists.
func (p AbsoluteSystemPath) Create() (*os.File, error) {
	return os.Create(p.ToString())
}

// FileExists reports whether anything exists at this path.
func (p AbsoluteSystemPath) FileExists() bool {
	_, err := os.Lstat(p.ToString())
	return err == nil
}

// DirExists reports whether this path exists and is a directory.
func (p AbsoluteSystemPath) DirExists() bool {
	info, err := os.Stat(p.ToString())
	return err == nil && info.IsDir()
}

// Lstat returns file info for this path without following a terminal
// symlink.
func (p AbsoluteSystemPath) Lstat() (os.FileInfo, error) {
	return os.Lstat(p.ToString())
}

// ReadFile reads the entire contents of the file at this path.
func (p AbsoluteSystemPath) ReadFile() ([]byte, error) {
	return os.ReadFile(p.ToString())
}

// WriteFile writes contents to the file at this path, creating it with mode
// if it doesn't exist.
func (p AbsoluteSystemPath) WriteFile(contents []byte, mode os.FileMode) error {
	return os.WriteFile(p.ToString(), contents, mode)
}

// Symlink creates a symlink at this path pointing at target.
func (p AbsoluteSystemPath) Symlink(target string) error {
	return os.Symlink(target, p.ToString())
}

// Readlink returns the target of the symlink at this path.
func (p AbsoluteSystemPath) Readlink() (string, error) {
	return os.Readlink(p.ToString())
}

// Remove removes the file or empty directory at this path.
func (p AbsoluteSystemPath) Remove() error {
	return os.Remove(p.ToString())
}

// RemoveAll removes this path and everything beneath it.
func (p AbsoluteSystemPath) RemoveAll() error {
	return os.RemoveAll(p.ToString())
}

// Rename moves this path to newPath.
func (p AbsoluteSystemPath) Rename(newPath AbsoluteSystemPath) error {
	return os.Rename(p.ToString(), newPath.ToString())
}

// RelativePathString returns the relative path from p to other as a plain
// string, for callers that haven't adopted a typed relative path yet.
func (p AbsoluteSystemPath) RelativePathString(other string) (string, error) {
	return filepath.Rel(p.ToString(), other)
}

// PathTo is an alias of RelativePathString kept for call sites that phrase
// the question the other way around ("the path to other, from here").
func (p AbsoluteSystemPath) PathTo(other AbsoluteSystemPath) (string, error) {
	return filepath.Rel(p.ToString(), other.ToString())
}
