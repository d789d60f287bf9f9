package npmcache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha512"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denoland/deno-sub011/internal/modpath"
)

func buildTarballGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, contents := range files {
		hdr := &tar.Header{
			Name: tarballRootPrefix + name,
			Mode: 0o644,
			Size: int64(len(contents)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarballGzipStripsPackagePrefix(t *testing.T) {
	body := buildTarballGz(t, map[string]string{
		"package.json": `{"name":"leftpad","version":"1.0.0"}`,
		"index.js":     "module.exports = function(){}",
	})

	dest := modpath.AbsolutePathFromUpstream(t.TempDir())
	require.NoError(t, extractTarballGzip(body, dest))

	pkgJSON, err := os.ReadFile(filepath.Join(dest.String(), "package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(pkgJSON), "leftpad")
}

func TestExtractTarballGzipRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{Name: tarballRootPrefix + "../../evil", Mode: 0o644, Size: 4}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err := tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dest := modpath.AbsolutePathFromUpstream(t.TempDir())
	err = extractTarballGzip(buf.Bytes(), dest)
	assert.Error(t, err)
}

func TestVerifyIntegritySha512Match(t *testing.T) {
	body := []byte("hello world")
	_, _, ok := verifyIntegrity(body, Dist{})
	assert.True(t, ok, "no digest present should pass permissively")

	sum := sha512.Sum512(body)
	_, _, ok = verifyIntegrity(body, Dist{Integrity: "sha512-" + base64.StdEncoding.EncodeToString(sum[:])})
	assert.True(t, ok, "matching sha512 integrity should pass")

	_, _, ok = verifyIntegrity(body, Dist{Shasum: "deadbeef"})
	assert.False(t, ok)
}

func TestPackageDirLayout(t *testing.T) {
	c := New(modpath.AbsolutePathFromUpstream("/cache/npm"))
	dir := c.PackageDir("", PackageNv{Name: "leftpad", Version: "1.0.0"})
	assert.Equal(t, filepath.Join("/cache/npm", "registry.npmjs.org", "leftpad", "1.0.0"), dir.String())
}
