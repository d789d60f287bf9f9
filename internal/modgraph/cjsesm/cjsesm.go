// Package cjsesm implements the CJS/ESM kind classifier and the emit
// step (see Transpile for what it does to the source) the module graph needs before a loaded
// module can reach the runtime: CjsTracker.determine_kind's rules, the
// optional heuristic CommonJS detector (tree-sitter-typescript-backed), the
// CJS-in-ESM shim, and an emit cache keyed by (content_hash,
// emit_options_hash) so re-running against an unchanged source and
// unchanged compiler options never re-transpiles.
package cjsesm

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"sync"
)

// Kind is the module system a source file executes under.
type Kind int

const (
	Esm Kind = iota
	Cjs
)

func (k Kind) String() string {
	if k == Cjs {
		return "cjs"
	}
	return "esm"
}

// PackageType is the nearest ancestor package.json's "type" field, or ""
// if absent or the file isn't inside any npm package.
type PackageType string

const (
	PackageTypeUnset     PackageType = ""
	PackageTypeModule    PackageType = "module"
	PackageTypeCommonJS  PackageType = "commonjs"
)

// HeuristicOption controls whether DetermineKind falls back to syntactic
// CJS detection for .js/.ts/.jsx/.tsx files whose package type is unset.
// The check does not distinguish files inside an npm package from any other
// file with an unset type. The zero value is off (the heuristic can
// false-positive on code that merely mentions "require" or "module" as
// ordinary identifiers).
type HeuristicOption bool

const (
	HeuristicOff HeuristicOption = false
	HeuristicOn  HeuristicOption = true
)

// DetermineKind implements CjsTracker::determine_kind: extension first,
// then the nearest package.json's type field, then (opt-in, for any
// .js/.ts/.jsx/.tsx file without an explicit type) syntactic heuristic
// detection, else ESM. source may be nil when heuristic is HeuristicOff, since it's
// only consulted by the heuristic path.
func DetermineKind(specifier string, pkgType PackageType, heuristic HeuristicOption, source []byte) (Kind, error) {
	ext := strings.ToLower(path.Ext(specifier))
	switch ext {
	case ".mjs", ".mts":
		return Esm, nil
	case ".cjs", ".cts":
		return Cjs, nil
	}

	switch pkgType {
	case PackageTypeModule:
		return Esm, nil
	case PackageTypeCommonJS:
		return Cjs, nil
	}

	if heuristic == HeuristicOn {
		switch ext {
		case ".js", ".ts", ".jsx", ".tsx":
			isCjs, err := looksLikeCjs(source)
			if err != nil {
				return Esm, err
			}
			if isCjs {
				return Cjs, nil
			}
		}
	}

	return Esm, nil
}

// WrapCjsShim wraps CommonJS source so it can be consumed from an ESM
// importer: a synthetic module-scope function receives Node-shaped
// module/exports/require bindings and the shim re-exports the resulting
// module.exports as the default export, plus each of its own enumerable
// properties as named exports (approximated here as a default-only
// re-export; full named-export interop requires evaluating the module,
// which is out of scope for the static graph/transpile stage).
func WrapCjsShim(source []byte, specifier string) string {
	return fmt.Sprintf(`const module = { exports: {} };
const exports = module.exports;
(function(module, exports, require) {
%s
})(module, exports, __denoCjsRequire(%q));
export default module.exports;
`, string(source), specifier)
}

// EmitOptions affects the transpiled output, and therefore is folded into
// the emit cache key alongside the source's content hash.
type EmitOptions struct {
	InlineSourceMap bool
	Minify          bool
}

func (o EmitOptions) hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "inline=%v;minify=%v", o.InlineSourceMap, o.Minify)
	return hex.EncodeToString(h.Sum(nil))
}

// EmitCache stores transpiled output keyed by (content_hash,
// emit_options_hash), avoiding repeat work across runs against an
// unchanged source tree and compiler configuration.
type EmitCache struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewEmitCache returns an empty cache.
func NewEmitCache() *EmitCache {
	return &EmitCache{store: map[string]string{}}
}

func contentHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

func emitKey(source []byte, opts EmitOptions) string {
	return contentHash(source) + ":" + opts.hash()
}

// Transpile emits source wrapped in the CJS shim when kind is Cjs and
// shimIntoEsm is set, and otherwise returns source unchanged, with an
// inlined `data:` source map trailer when opts.InlineSourceMap is set,
// keyed in cache by (content_hash, emit_options_hash) so identical input
// never re-transpiles. It does not lower TypeScript, JSX or any other
// syntax to plain JavaScript, and does not strip comments: a TS source
// comes out as TS.
func (c *EmitCache) Transpile(source []byte, specifier string, kind Kind, shimIntoEsm bool, opts EmitOptions) string {
	key := emitKey(source, opts)
	c.mu.RLock()
	if cached, ok := c.store[key]; ok {
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	var code string
	if kind == Cjs && shimIntoEsm {
		code = WrapCjsShim(source, specifier)
	} else {
		code = string(source)
	}
	if opts.InlineSourceMap {
		code += "\n//# sourceMappingURL=" + inlineSourceMapURL(source, specifier)
	}

	c.mu.Lock()
	c.store[key] = code
	c.mu.Unlock()
	return code
}

// Put records a pre-computed emission (used by the type checker stage once
// it has produced the real lowered output for a source this cache hasn't
// seen with this exact EmitOptions combination yet).
func (c *EmitCache) Put(source []byte, opts EmitOptions, code string) {
	c.mu.Lock()
	c.store[emitKey(source, opts)] = code
	c.mu.Unlock()
}

// inlineSourceMapURL builds a minimal identity source map (one segment per
// line, no column remapping) as a base64 data: URL — good enough to let a
// debugger jump back to the original file, without carrying an external
// .map sidecar that would need its own cache-invalidation story.
func inlineSourceMapURL(source []byte, specifier string) string {
	lines := strings.Count(string(source), "\n") + 1
	mappings := strings.Repeat("AAAA;", lines)
	sourceMap := fmt.Sprintf(
		`{"version":3,"sources":[%q],"names":[],"mappings":%q}`,
		specifier, mappings,
	)
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(sourceMap))
}
