package modpath

import (
	"os"
	"path/filepath"
)

// dirPermissions are the default permission bits applied to created directories.
const dirPermissions = os.ModeDir | 0775

// AbsolutePath is a platform-native absolute filesystem path. Keeping it as
// a distinct type stops a relative path or a module specifier from being
// passed where an absolute, on-disk path is required.
type AbsolutePath string

// AbsolutePathFromUpstream casts a string to an AbsolutePath without
// verifying it is actually absolute. Use only when the caller has already
// checked (e.g. immediately after filepath.Abs).
func AbsolutePathFromUpstream(p string) AbsolutePath {
	return AbsolutePath(p)
}

// NewAbsolutePath makes p absolute relative to the current working
// directory and wraps it.
func NewAbsolutePath(p string) (AbsolutePath, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return AbsolutePath(abs), nil
}

func (ap AbsolutePath) String() string { return string(ap) }

// Join appends path segments and returns the resulting absolute path.
func (ap AbsolutePath) Join(segments ...string) AbsolutePath {
	return AbsolutePath(filepath.Join(append([]string{string(ap)}, segments...)...))
}

// Dir returns the parent directory.
func (ap AbsolutePath) Dir() AbsolutePath {
	return AbsolutePath(filepath.Dir(string(ap)))
}

// Base returns the final path element.
func (ap AbsolutePath) Base() string {
	return filepath.Base(string(ap))
}

// Ext returns the file extension, including the leading dot.
func (ap AbsolutePath) Ext() string {
	return filepath.Ext(string(ap))
}

// Exists reports whether anything exists at this path.
func (ap AbsolutePath) Exists() bool {
	_, err := os.Lstat(string(ap))
	return err == nil
}

// IsFile reports whether this path exists and is a regular file.
func (ap AbsolutePath) IsFile() bool {
	info, err := os.Lstat(string(ap))
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether this path exists and is a directory.
func (ap AbsolutePath) IsDir() bool {
	info, err := os.Stat(string(ap))
	return err == nil && info.IsDir()
}

// EnsureDir ensures the directory containing this path exists.
func (ap AbsolutePath) EnsureDir() error {
	dir := filepath.Dir(string(ap))
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		// a file may already occupy the directory's slot after a rule
		// change; only remove it if it's actually a plain file
		if info, statErr := os.Lstat(dir); statErr == nil && info.Mode().IsRegular() {
			if rmErr := os.Remove(dir); rmErr == nil {
				return os.MkdirAll(dir, dirPermissions)
			}
		}
		return err
	}
	return nil
}

// MkdirAll creates this path and any necessary parents as directories.
func (ap AbsolutePath) MkdirAll(mode os.FileMode) error {
	return os.MkdirAll(string(ap), mode)
}

// ToFileSpecifier converts this path to a file: module specifier.
func (ap AbsolutePath) ToFileSpecifier() Specifier {
	return FromFilePath(ap)
}

// RelativeTo returns the relative path from ap to other.
func (ap AbsolutePath) RelativeTo(other AbsolutePath) (string, error) {
	return filepath.Rel(string(ap), string(other))
}
