package materializer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/npm/npmcache"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

func writePackage(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
}

func TestMaterializeBuildsRootAliasAndDependencyEdge(t *testing.T) {
	tmp := t.TempDir()
	cacheRoot := filepath.Join(tmp, "cacheroot")
	project := filepath.Join(tmp, "project")
	require.NoError(t, os.MkdirAll(project, 0o755))

	// Pre-seed the npm cache the way EnsurePackage would have left it,
	// so Materialize's cache-ensure step is a cheap no-op hit.
	ansiDir := filepath.Join(cacheRoot, "registry.npmjs.org", "ansi-styles", "6.2.1")
	chalkDir := filepath.Join(cacheRoot, "registry.npmjs.org", "chalk", "5.3.0")
	writePackage(t, ansiDir, map[string]string{"package.json": `{"name":"ansi-styles"}`})
	writePackage(t, chalkDir, map[string]string{"package.json": `{"name":"chalk"}`})

	ansiID := resolver.NpmPackageId{Nv: resolver.PackageNv{Name: "ansi-styles", Version: "6.2.1"}}
	chalkID := resolver.NpmPackageId{Nv: resolver.PackageNv{Name: "chalk", Version: "5.3.0"}}

	snap := resolver.NewSnapshot()
	snap.AddPackage(resolver.NpmResolutionPackage{ID: ansiID})
	snap.AddPackage(resolver.NpmResolutionPackage{
		ID:           chalkID,
		Dependencies: map[string]resolver.NpmPackageId{"ansi-styles": ansiID},
	})
	snap.PackageReqs["chalk@^5.0.0"] = chalkID.Nv
	snap.RootPackages[chalkID.Nv.String()] = chalkID

	cache := npmcache.New(modpath.AbsolutePathFromUpstream(cacheRoot))
	result, err := Materialize(Options{
		ProjectRoot: modpath.AbsolutePathFromUpstream(project),
		Snapshot:    snap,
		Cache:       cache,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FolderCount)

	rootAlias := filepath.Join(project, "node_modules", "chalk")
	info, err := os.Lstat(rootAlias)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	depEdge := filepath.Join(project, "node_modules", ".deno", chalkID.String(), "node_modules", "ansi-styles")
	_, err = os.Lstat(depEdge)
	require.NoError(t, err)

	// Re-running with an unchanged snapshot short-circuits via the setup cache.
	result2, err := Materialize(Options{
		ProjectRoot: modpath.AbsolutePathFromUpstream(project),
		Snapshot:    snap,
		Cache:       cache,
	})
	require.NoError(t, err)
	assert.True(t, result2.Reused)
}
