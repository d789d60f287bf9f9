package cjsesm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineKindByExtension(t *testing.T) {
	k, err := DetermineKind("/pkg/foo.mjs", PackageTypeUnset, HeuristicOff, nil)
	require.NoError(t, err)
	assert.Equal(t, Esm, k)

	k, err = DetermineKind("/pkg/foo.cts", PackageTypeUnset, HeuristicOff, nil)
	require.NoError(t, err)
	assert.Equal(t, Cjs, k)
}

func TestDetermineKindByPackageType(t *testing.T) {
	k, err := DetermineKind("/pkg/foo.js", PackageTypeCommonJS, HeuristicOff, nil)
	require.NoError(t, err)
	assert.Equal(t, Cjs, k)

	k, err = DetermineKind("/pkg/foo.js", PackageTypeModule, HeuristicOff, nil)
	require.NoError(t, err)
	assert.Equal(t, Esm, k)
}

func TestDetermineKindHeuristicDetectsRequire(t *testing.T) {
	src := []byte(`const fs = require("fs");
module.exports = fs;`)
	k, err := DetermineKind("/node_modules/left-pad/index.js", PackageTypeUnset, HeuristicOn, src)
	require.NoError(t, err)
	assert.Equal(t, Cjs, k)
}

func TestDetermineKindHeuristicOffDefaultsToEsm(t *testing.T) {
	src := []byte(`const fs = require("fs");`)
	k, err := DetermineKind("/node_modules/left-pad/index.js", PackageTypeUnset, HeuristicOff, src)
	require.NoError(t, err)
	assert.Equal(t, Esm, k)
}

func TestEmitCacheReusesIdenticalInput(t *testing.T) {
	cache := NewEmitCache()
	src := []byte("export const x = 1;")
	first := cache.Transpile(src, "file:///a.ts", Esm, false, EmitOptions{})
	second := cache.Transpile(src, "file:///a.ts", Esm, false, EmitOptions{})
	assert.Equal(t, first, second)
}

func TestTranspileShimsCjsForEsmConsumer(t *testing.T) {
	cache := NewEmitCache()
	src := []byte("module.exports = 1;")
	out := cache.Transpile(src, "file:///a.js", Cjs, true, EmitOptions{})
	assert.Contains(t, out, "export default module.exports;")
}

func TestTranspileInlinesSourceMap(t *testing.T) {
	cache := NewEmitCache()
	src := []byte("export const x = 1;")
	out := cache.Transpile(src, "file:///a.ts", Esm, false, EmitOptions{InlineSourceMap: true})
	assert.Contains(t, out, "sourceMappingURL=data:application/json;base64,")
}
