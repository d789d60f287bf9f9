// Package prepare orchestrates the sequence a module load goes through
// before a program is ready to run: build the module graph, validate it,
// optionally hand it to an external type checker, report diagnostics, and
// emit transpiled code for everything the graph reached. It is the
// top-level "build -> validate -> act" pipeline the other modgraph
// packages are composed under.
package prepare

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/denoland/deno-sub011/internal/modgraph"
	"github.com/denoland/deno-sub011/internal/modgraph/cjsesm"
	"github.com/denoland/deno-sub011/internal/modpath"
)

// TypeChecker runs an external TypeScript compiler over a fast-check
// subgraph and returns one diagnostic per problem found. Real
// implementations shell out to a bundled tsc/deno_graph-equivalent binary;
// tests can substitute a stub.
type TypeChecker interface {
	Check(files map[string]*modgraph.Module) ([]Diagnostic, error)
}

// Diagnostic mirrors moderr.Diagnostic without importing it here, since a
// checker implementation shouldn't need to depend on the error taxonomy
// package to produce results; Prepare converts these at the boundary.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Options configures one Prepare call.
type Options struct {
	Roots      []modpath.Specifier
	Graph      modgraph.Options
	TypeCheck  bool
	Checker    TypeChecker
	EmitCache  *cjsesm.EmitCache
	EmitOpts   cjsesm.EmitOptions
	ShimCjsIntoEsm bool
}

// Result is everything a caller needs to run or report on a prepared
// program: the graph itself, the type-check diagnostics (if requested),
// and each module's emitted (plain-JS) source keyed by specifier.
type Result struct {
	Graph       *modgraph.ModuleGraph
	Diagnostics []Diagnostic
	Emitted     map[string]string
}

// checkCache is a content-addressed store of "this exact source, under
// this exact set of compiler options, already type-checked clean" so an
// unchanged file is never rechecked across Prepare calls sharing a cache.
type CheckCache struct {
	mu    sync.Mutex
	clean map[string]bool
}

// NewCheckCache returns an empty type-check cache.
func NewCheckCache() *CheckCache {
	return &CheckCache{clean: map[string]bool{}}
}

func checkKey(source []byte, optsHash string) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:]) + ":" + optsHash
}

// emitOptsHash hashes every emit option (inline source map and minify) into
// the cache key, so output emitted under one set of options is never
// returned for another.
func emitOptsHash(o cjsesm.EmitOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "inline=%v;minify=%v", o.InlineSourceMap, o.Minify)
	return hex.EncodeToString(h.Sum(nil))
}

// Prepare builds the graph rooted at opts.Roots, validates it (Build
// already surfaces a moderr.GraphError for any missing edge target, so a
// non-nil error here is a hard stop), optionally type-checks the
// fast-check subgraph against checkCache, and emits transpiled output for
// every module Build reached.
func Prepare(opts Options, checkCache *CheckCache) (*Result, error) {
	graph, err := modgraph.Build(opts.Roots, opts.Graph)
	if err != nil {
		return nil, fmt.Errorf("prepare: graph build failed: %w", err)
	}

	result := &Result{Graph: graph, Emitted: map[string]string{}}

	if opts.TypeCheck {
		if opts.Checker == nil {
			return nil, fmt.Errorf("prepare: type-check requested but no Checker configured")
		}
		subgraph := graph.FastCheckSubgraph()
		optsHash := emitOptsHash(opts.EmitOpts)
		toCheck := filterUnchecked(subgraph, checkCache, optsHash)
		if len(toCheck) > 0 {
			diags, err := opts.Checker.Check(toCheck)
			if err != nil {
				return result, fmt.Errorf("prepare: type check failed: %w", err)
			}
			result.Diagnostics = diags
			markClean(toCheck, diags, checkCache, optsHash)
		}
	}

	cache := opts.EmitCache
	if cache == nil {
		cache = cjsesm.NewEmitCache()
	}
	for key, mod := range graph.Modules {
		result.Emitted[key] = cache.Transpile(mod.Source, key, mod.Kind, opts.ShimCjsIntoEsm, opts.EmitOpts)
	}

	return result, nil
}

func filterUnchecked(subgraph map[string]*modgraph.Module, cache *CheckCache, optsHash string) map[string]*modgraph.Module {
	if cache == nil {
		return subgraph
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	out := map[string]*modgraph.Module{}
	for key, mod := range subgraph {
		if cache.clean[checkKey(mod.Source, optsHash)] {
			continue
		}
		out[key] = mod
	}
	return out
}

func markClean(checked map[string]*modgraph.Module, diags []Diagnostic, cache *CheckCache, optsHash string) {
	if cache == nil {
		return
	}
	dirty := map[string]bool{}
	for _, d := range diags {
		dirty[d.File] = true
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for key, mod := range checked {
		if dirty[key] {
			continue
		}
		cache.clean[checkKey(mod.Source, optsHash)] = true
	}
}
