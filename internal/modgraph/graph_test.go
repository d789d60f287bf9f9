package modgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/denoland/deno-sub011/internal/httpcache"
	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, name, source string) modpath.Specifier {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	abs := modpath.AbsolutePathFromUpstream(path)
	return modpath.FromFilePath(abs)
}

func TestBuildWalksStaticImportEdges(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "leaf.ts", `export const value = 1;`)
	root := writeModule(t, dir, "root.ts", `import { value } from "./leaf.ts";
export { value };`)

	fetcher := &httpcache.Fetcher{}
	g, err := Build([]modpath.Specifier{root}, Options{
		Fetcher:       fetcher,
		SloppyImports: false,
	})
	require.NoError(t, err)

	assert.Len(t, g.Modules, 2)
	rootMod, ok := g.Modules[root.String()]
	require.True(t, ok)
	require.Len(t, rootMod.Imports, 1)
	resolved, ok := rootMod.ResolvedImports["./leaf.ts"]
	require.True(t, ok)
	assert.Contains(t, resolved.String(), "leaf.ts")
}

func TestBuildSkipsDynamicImportsByDefault(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "leaf.ts", `export const value = 1;`)
	root := writeModule(t, dir, "root.ts", `async function load() {
  return await import("./leaf.ts");
}
load();`)

	fetcher := &httpcache.Fetcher{}
	g, err := Build([]modpath.Specifier{root}, Options{Fetcher: fetcher})
	require.NoError(t, err)
	assert.Len(t, g.Modules, 1, "dynamic import should not be followed without FollowDynamic")

	g2, err := Build([]modpath.Specifier{root}, Options{Fetcher: fetcher, FollowDynamic: true})
	require.NoError(t, err)
	assert.Len(t, g2.Modules, 2, "dynamic import should be followed with FollowDynamic")
}

func TestBuildReportsMissingImportAsGraphError(t *testing.T) {
	dir := t.TempDir()
	root := writeModule(t, dir, "root.ts", `import { missing } from "./nope.ts";
export { missing };`)

	fetcher := &httpcache.Fetcher{}
	_, err := Build([]modpath.Specifier{root}, Options{Fetcher: fetcher})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.ts")
}

func TestFastCheckSubgraphTreatsNodeModulesAsLeaf(t *testing.T) {
	dir := t.TempDir()
	nmDir := filepath.Join(dir, "node_modules", "left-pad")
	require.NoError(t, os.MkdirAll(nmDir, 0o755))
	writeModule(t, nmDir, "index.js", `module.exports = function leftPad() {};`)
	writeModule(t, dir, "leaf.ts", `export const value = 1;`)
	root := writeModule(t, dir, "root.ts", `import { value } from "./leaf.ts";
import leftPad from "./node_modules/left-pad/index.js";
export { value, leftPad };`)

	fetcher := &httpcache.Fetcher{}
	g, err := Build([]modpath.Specifier{root}, Options{Fetcher: fetcher})
	require.NoError(t, err)

	sub := g.FastCheckSubgraph()
	assert.Len(t, sub, 3)
}
