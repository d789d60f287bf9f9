// Package modgraph builds and validates the dependency graph of ES/CJS
// modules a program needs before it can run: a breadth-first walk of
// import/export/dynamic-import edges starting from one or more root
// specifiers, resolved through a layered resolver chain (workspace →
// sloppy-imports → node → npm-req), fetched through internal/httpcache, and
// classified CJS/ESM by internal/modgraph/cjsesm.
package modgraph

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/denoland/deno-sub011/internal/httpcache"
	"github.com/denoland/deno-sub011/internal/modgraph/cjsesm"
	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// Module is one resolved, fetched node in the graph.
type Module struct {
	Specifier modpath.Specifier
	MediaType string
	Source    []byte
	Kind      cjsesm.Kind
	Imports   []ImportEdge

	// ResolvedImports maps each ImportEdge.Specifier to the specifier it
	// resolved to, so a consumer never has to re-run the resolver chain.
	ResolvedImports map[string]modpath.Specifier
}

// PackageJSON is the subset of a package.json consulted while building the
// graph: its module kind default and its declared name, memoized per
// directory so a package with many modules only pays for one read/parse.
type PackageJSON struct {
	Name string
	Type cjsesm.PackageType
}

// Options configures a single build() call.
type Options struct {
	Fetcher  *httpcache.Fetcher
	Snapshot *resolver.NpmResolutionSnapshot

	ImportMap map[string]string
	Workspace map[string]modpath.Specifier

	SloppyImports bool
	FollowDynamic bool
	CjsHeuristic  cjsesm.HeuristicOption

	// ReadPackageJSON loads and caches the nearest package.json above a
	// file: path. Required for accurate CJS/ESM classification of npm
	// package contents; may be nil for graphs rooted entirely outside
	// node_modules (workspace-only graphs with no ambiguous extensions).
	ReadPackageJSON func(dirOfModule modpath.Specifier) (PackageJSON, error)

	// ReferrerPackage and PackageEntry back the node/npm-req resolvers;
	// both may be nil when Snapshot is nil.
	ReferrerPackage map[string]resolver.NpmPackageId
	PackageEntry    func(id resolver.NpmPackageId) (modpath.Specifier, error)

	Exists func(path string) bool

	APIName string
}

// ModuleGraph is the result of build(): every module reached from the
// roots, keyed by canonical specifier string.
type ModuleGraph struct {
	Roots   []modpath.Specifier
	Modules map[string]*Module

	mu          sync.Mutex
	pkgJSONMemo map[string]PackageJSON
}

// Build walks roots breadth-first, resolving and fetching every static and
// (when opts.FollowDynamic is set) dynamic import edge, classifying each
// module's CJS/ESM kind, and returns the resulting graph. A module that
// fails to resolve or fetch does not abort the whole build: it is recorded
// as a moderr.GraphError and walking continues for every other pending
// edge, so Build reports every broken edge in one pass instead of stopping
// at the first. A single failure is returned as its *moderr.GraphError;
// several are joined into one error whose message lists each of them.
func Build(roots []modpath.Specifier, opts Options) (*ModuleGraph, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("modgraph: Build requires a Fetcher")
	}

	chain := buildResolverChain(opts)
	g := &ModuleGraph{
		Roots:       roots,
		Modules:     map[string]*Module{},
		pkgJSONMemo: map[string]PackageJSON{},
	}

	type pending struct {
		specifier modpath.Specifier
		referrer  modpath.Specifier
		chain     []string
	}

	queue := make([]pending, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, pending{specifier: r})
	}

	var errs []error
	visited := map[string]bool{}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		key := item.specifier.String()
		if visited[key] {
			continue
		}
		visited[key] = true

		mod, err := g.loadModule(item.specifier, opts)
		if err != nil {
			errs = append(errs, &moderr.GraphError{
				Specifier: key,
				Referrers: item.chain,
				Cause:     err,
			})
			continue
		}
		g.Modules[key] = mod

		for _, edge := range mod.Imports {
			if edge.IsDynamic && !opts.FollowDynamic {
				continue
			}
			resolved, handled, rerr := resolveThroughChain(chain, edge.Specifier, item.specifier)
			if rerr != nil {
				errs = append(errs, &moderr.GraphError{
					Specifier: edge.Specifier,
					Referrers: append(append([]string{}, item.chain...), key),
					Cause:     rerr,
				})
				continue
			}
			if !handled {
				resolved, rerr = item.specifier.ResolveRelative(edge.Specifier)
				if rerr != nil {
					errs = append(errs, &moderr.GraphError{
						Specifier: edge.Specifier,
						Referrers: append(append([]string{}, item.chain...), key),
						Cause:     rerr,
					})
					continue
				}
			}
			if mod.ResolvedImports == nil {
				mod.ResolvedImports = map[string]modpath.Specifier{}
			}
			mod.ResolvedImports[edge.Specifier] = resolved

			if visited[resolved.String()] {
				continue
			}
			queue = append(queue, pending{
				specifier: resolved,
				referrer:  item.specifier,
				chain:     append(append([]string{}, item.chain...), key),
			})
		}
	}

	if len(errs) > 0 {
		return g, joinGraphErrors(errs)
	}
	return g, nil
}

func buildResolverChain(opts Options) []Resolver {
	chain := []Resolver{
		&WorkspaceResolver{ImportMap: opts.ImportMap, Workspace: opts.Workspace},
	}
	if opts.SloppyImports {
		chain = append(chain, &SloppyImportsResolver{Enabled: true, Exists: opts.Exists})
	}
	chain = append(chain, &NodeResolver{
		Snapshot:        opts.Snapshot,
		ReferrerPackage: opts.ReferrerPackage,
		PackageEntry:    opts.PackageEntry,
	})
	chain = append(chain, &NpmReqResolver{
		Snapshot:     opts.Snapshot,
		PackageEntry: opts.PackageEntry,
	})
	return chain
}

func resolveThroughChain(chain []Resolver, specifier string, referrer modpath.Specifier) (modpath.Specifier, bool, error) {
	for _, r := range chain {
		resolved, handled, err := r.Resolve(specifier, referrer)
		if err != nil {
			return modpath.Specifier{}, true, err
		}
		if handled {
			return resolved, true, nil
		}
	}
	return modpath.Specifier{}, false, nil
}

func (g *ModuleGraph) loadModule(specifier modpath.Specifier, opts Options) (*Module, error) {
	file, err := opts.Fetcher.Fetch(specifier, opts.APIName)
	if err != nil {
		return nil, err
	}

	pkgType := cjsesm.PackageTypeUnset
	if opts.ReadPackageJSON != nil && specifier.Scheme() == modpath.SchemeFile {
		pj, err := g.memoPackageJSON(specifier, opts)
		if err != nil {
			return nil, fmt.Errorf("reading package.json for %s: %w", specifier, err)
		}
		pkgType = pj.Type
	}

	kind, err := cjsesm.DetermineKind(specifier.Path(), pkgType, opts.CjsHeuristic, file.Source)
	if err != nil {
		return nil, err
	}

	edges, err := extractImports(file.Source)
	if err != nil {
		return nil, err
	}

	return &Module{
		Specifier: specifier,
		MediaType: file.MediaType,
		Source:    file.Source,
		Kind:      kind,
		Imports:   edges,
	}, nil
}

func (g *ModuleGraph) memoPackageJSON(specifier modpath.Specifier, opts Options) (PackageJSON, error) {
	dirKey := filepath.Dir(specifier.Path())
	g.mu.Lock()
	if pj, ok := g.pkgJSONMemo[dirKey]; ok {
		g.mu.Unlock()
		return pj, nil
	}
	g.mu.Unlock()

	pj, err := opts.ReadPackageJSON(specifier)
	if err != nil {
		return PackageJSON{}, err
	}

	g.mu.Lock()
	g.pkgJSONMemo[dirKey] = pj
	g.mu.Unlock()
	return pj, nil
}

func joinGraphErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d module(s) failed to load:", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}

// FastCheckSubgraph returns the subset of the graph reachable from roots
// while treating every npm: / node_modules file: module as a leaf (its own
// imports are not walked further) — the pruned view "deno check --fast"
// style fast type-checking uses, since published npm packages are assumed
// to already type-check against their own declared types.
func (g *ModuleGraph) FastCheckSubgraph() map[string]*Module {
	out := map[string]*Module{}
	var visit func(spec modpath.Specifier)
	visit = func(spec modpath.Specifier) {
		key := spec.String()
		if _, ok := out[key]; ok {
			return
		}
		mod, ok := g.Modules[key]
		if !ok {
			return
		}
		out[key] = mod
		if isNpmLeaf(spec) {
			return
		}
		for _, resolved := range mod.ResolvedImports {
			visit(resolved)
		}
	}
	for _, r := range g.Roots {
		visit(r)
	}
	return out
}

func isNpmLeaf(spec modpath.Specifier) bool {
	if spec.Scheme() == modpath.SchemeNpm {
		return true
	}
	return spec.Scheme() == modpath.SchemeFile && containsNodeModules(spec.Path())
}

func containsNodeModules(p string) bool {
	const marker = "/node_modules/"
	for i := 0; i+len(marker) <= len(p); i++ {
		if p[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}
