package materializer

import (
	"io/fs"
	"os"
	"path/filepath"
)

// ClonePatchOverlay copies every file under patchDir into pkgDir, except
// any "node_modules" child the patch directory itself contains — a patch
// overlays a package's own source files but must never clobber that
// package's already-wired dependency tree.
func ClonePatchOverlay(patchDir, pkgDir string) error {
	return filepath.WalkDir(patchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(patchDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == nodeModules {
			return fs.SkipDir
		}
		target := filepath.Join(pkgDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
