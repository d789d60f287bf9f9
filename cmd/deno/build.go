package deno

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/denoland/deno-sub011/internal/materializer"
	"github.com/denoland/deno-sub011/internal/modgraph"
	"github.com/denoland/deno-sub011/internal/modgraph/cjsesm"
	"github.com/denoland/deno-sub011/internal/modgraph/prepare"
	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// buildOptions are the knobs every graph-building subcommand (run, cache,
// check, test, bench, compile) shares, layered on top of globalFlags.
type buildOptions struct {
	typeCheck     bool
	followDynamic bool
}

// argsToRoots converts the CLI's positional specifier arguments into
// absolute module specifiers, resolving bare filesystem paths against cwd
// the way a shell resolves a relative script path.
func argsToRoots(cwd modpath.AbsolutePath, args []string) ([]modpath.Specifier, error) {
	roots := make([]modpath.Specifier, 0, len(args))
	for _, arg := range args {
		spec, err := argToSpecifier(cwd, arg)
		if err != nil {
			return nil, err
		}
		roots = append(roots, spec)
	}
	return roots, nil
}

func argToSpecifier(cwd modpath.AbsolutePath, arg string) (modpath.Specifier, error) {
	if looksLikeURL(arg) {
		return modpath.ParseSpecifier(arg)
	}
	path := arg
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd.String(), path)
	}
	return modpath.FromFilePath(modpath.AbsolutePathFromUpstream(path)), nil
}

// loadImportMap reads an import map (the "{"imports": {...}}" shape) from
// mapArg, which may be empty (no map requested) or a filesystem path,
// resolved against cwd the same way a root module specifier's bare path is.
// Remote (http/https) import maps aren't fetched through the httpcache
// fetcher here; only local maps are supported.
func loadImportMap(cwd modpath.AbsolutePath, mapArg string) (map[string]string, error) {
	if mapArg == "" {
		return nil, nil
	}
	if looksLikeURL(mapArg) && !strings.HasPrefix(mapArg, "file://") {
		return nil, fmt.Errorf("import map %q: only local import maps are supported", mapArg)
	}
	path := strings.TrimPrefix(mapArg, "file://")
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd.String(), path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import map %q: %w", mapArg, err)
	}
	var doc struct {
		Imports map[string]string `json:"imports"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing import map %q: %w", mapArg, err)
	}
	return doc.Imports, nil
}

func looksLikeURL(s string) bool {
	for _, scheme := range []string{"file://", "http://", "https://", "npm:", "jsr:", "node:", "data:", "blob:"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return true
		}
	}
	return false
}

// runBuild is the shared "build -> resolve npm deps -> type-check ->
// transpile" pipeline every graph-based subcommand drives, differing only
// in whether it requests type-checking and how it reports the result.
func runBuild(e *env, flags *globalFlags, roots []modpath.Specifier, bo buildOptions) (*prepare.Result, error) {
	manifest, err := readProjectManifest(e.cwd)
	if err != nil {
		return nil, err
	}

	importMap, err := loadImportMap(e.cwd, flags.importMap)
	if err != nil {
		return nil, err
	}

	graphOpts := modgraph.Options{
		Fetcher:       e.fetcher,
		ImportMap:     importMap,
		SloppyImports: flags.sloppyImports,
		FollowDynamic: bo.followDynamic,
		CjsHeuristic:  cjsesm.HeuristicOption(true),
		ReadPackageJSON: func(dirOfModule modpath.Specifier) (modgraph.PackageJSON, error) {
			return readNearestPackageJSON(dirOfModule)
		},
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		APIName: "deno",
	}

	if !flags.noNpm && (len(manifest.Dependencies) > 0 || len(manifest.DevDependencies) > 0) {
		snap, npmResult, err := resolveAndMaterialize(e, flags, manifest)
		if err != nil {
			return nil, err
		}
		graphOpts.Snapshot = snap
		graphOpts.ReferrerPackage = npmResult.referrerPackage
		graphOpts.PackageEntry = npmResult.packageEntry
	}

	checker := &tscChecker{logger: e.logger}

	result, err := prepare.Prepare(prepare.Options{
		Roots:          roots,
		Graph:          graphOpts,
		TypeCheck:      bo.typeCheck,
		Checker:        checker,
		EmitCache:      cjsesm.NewEmitCache(),
		EmitOpts:       cjsesm.EmitOptions{},
		ShimCjsIntoEsm: false,
	}, globalCheckCache)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveAndMaterialize resolves manifest's dependencies to a snapshot,
// ensures every selected package is extracted on disk, and indexes it for
// the graph's node/npm-req resolvers. When flags.nodeModules is set, it
// also builds a real node_modules tree under cwd via internal/materializer,
// the way Node's own resolver (rather than this runtime's graph resolver)
// would expect to find packages.
func resolveAndMaterialize(e *env, flags *globalFlags, manifest packageManifest) (*resolver.NpmResolutionSnapshot, *npmGraphIndex, error) {
	snap, diagnostics, err := e.npmResolver.Resolve(manifest.packageReqs(), nil)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range diagnostics {
		e.logger.Warn("npm resolution", "detail", d.Detail)
	}
	if err := materializeSnapshot(e, snap); err != nil {
		return nil, nil, err
	}
	if flags.nodeModules {
		if _, err := materializer.Materialize(materializer.Options{
			ProjectRoot:  e.cwd,
			Snapshot:     snap,
			RegistryHost: e.registryHost,
			Cache:        e.npmCache,
			RunScripts:   e.lifecycle.MaterializerHook(),
			Logger:       e.logger,
		}); err != nil {
			return nil, nil, fmt.Errorf("materializing node_modules: %w", err)
		}
	}
	index, err := buildNpmGraphIndex(e, snap)
	if err != nil {
		return nil, nil, err
	}
	return snap, index, nil
}

// reportResult writes diagnostics and graph errors to stderr in the
// teacher's colorized style and returns a non-nil error (already mapped to
// an exit code) if anything was wrong.
func reportResult(result *prepare.Result, buildErr error) error {
	if buildErr != nil {
		return buildErr
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, color.YellowString("%s:%d:%d", d.File, d.Line, d.Column)+" - "+d.Message)
	}
	if len(result.Diagnostics) > 0 {
		return &moderr.TypeCheckError{Diagnostics: toModerrDiagnostics(result.Diagnostics)}
	}
	return nil
}

func toModerrDiagnostics(diags []prepare.Diagnostic) []moderr.Diagnostic {
	out := make([]moderr.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, moderr.Diagnostic{File: d.File, Line: d.Line, Column: d.Column, Message: d.Message})
	}
	return out
}
