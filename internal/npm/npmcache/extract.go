package npmcache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/denoland/deno-sub011/internal/modpath"
)

// npm tarballs conventionally wrap their contents in a single top-level
// "package/" directory; we strip it so the cache directory for a package
// holds its package.json directly.
const tarballRootPrefix = "package/"

// extractTarballGzip unpacks a gzip-compressed tar stream into dest, which
// the caller atomically publishes once extraction completes without error.
// Entries are validated against path traversal the same way a cache archive
// is: no absolute paths, no ".." components, no writes outside dest.
func extractTarballGzip(body []byte, dest modpath.AbsolutePath) error {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("not a gzip tarball: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := strings.TrimPrefix(header.Name, tarballRootPrefix)
		if name == "" {
			continue
		}
		target, err := safeJoin(dest, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target.String(), 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := target.Dir().MkdirAll(0o755); err != nil {
				return err
			}
			mode := os.FileMode(header.Mode)
			if mode == 0 {
				mode = 0o644
			}
			out, err := os.OpenFile(target.String(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := target.Dir().MkdirAll(0o755); err != nil {
				return err
			}
			linkTarget := filepath.FromSlash(header.Linkname)
			if filepath.IsAbs(linkTarget) || strings.Contains(linkTarget, "..") {
				return fmt.Errorf("npm tarball entry %q: unsafe symlink target %q", header.Name, header.Linkname)
			}
			os.Remove(target.String())
			if err := os.Symlink(linkTarget, target.String()); err != nil {
				return err
			}
		default:
			// skip device files, fifos, and other entries with no place on
			// a package tree
		}
	}
}

// safeJoin joins name onto dest, rejecting any entry whose normalized path
// would escape dest via ".." components or an absolute path.
func safeJoin(dest modpath.AbsolutePath, name string) (modpath.AbsolutePath, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("npm tarball entry %q escapes package root", name)
	}
	return dest.Join(cleaned), nil
}
