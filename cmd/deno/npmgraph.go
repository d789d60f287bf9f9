package deno

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/npm/npmcache"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// packageManifest is the subset of package.json consulted to seed npm
// resolution and classify the project root's own module kind.
type packageManifest struct {
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// readProjectManifest loads package.json from dir, returning a zero-value
// manifest (not an error) when the file doesn't exist, since a bare-script
// invocation with no package.json is a normal, dependency-free run.
func readProjectManifest(dir modpath.AbsolutePath) (packageManifest, error) {
	var manifest packageManifest
	b, err := os.ReadFile(dir.Join("package.json").String())
	if err != nil {
		if os.IsNotExist(err) {
			return manifest, nil
		}
		return manifest, err
	}
	if err := json.Unmarshal(b, &manifest); err != nil {
		return manifest, fmt.Errorf("parsing %s: %w", dir.Join("package.json"), err)
	}
	return manifest, nil
}

// packageReqs flattens a manifest's dependencies and devDependencies into
// sorted, deterministic top-level requirements for resolver.Resolve.
func (m packageManifest) packageReqs() []resolver.PackageReq {
	names := make([]string, 0, len(m.Dependencies)+len(m.DevDependencies))
	ranges := map[string]string{}
	for name, rng := range m.Dependencies {
		names = append(names, name)
		ranges[name] = rng
	}
	for name, rng := range m.DevDependencies {
		if _, ok := ranges[name]; ok {
			continue
		}
		names = append(names, name)
		ranges[name] = rng
	}
	sort.Strings(names)
	reqs := make([]resolver.PackageReq, 0, len(names))
	for _, name := range names {
		reqs = append(reqs, resolver.PackageReq{Name: name, VersionReq: ranges[name]})
	}
	return reqs
}

// materializeSnapshot ensures every package resolver.Resolve selected is
// extracted into the npm cache on disk, so the module graph's node/npm-req
// resolvers and fetcher can read real files under it.
func materializeSnapshot(e *env, snapshot *resolver.NpmResolutionSnapshot) error {
	for _, pkg := range snapshot.Packages {
		dist := npmcache.Dist{Tarball: pkg.Dist.Tarball, Integrity: pkg.Dist.Integrity, Shasum: pkg.Dist.Shasum}
		nv := npmcache.PackageNv{Name: pkg.ID.Nv.Name, Version: pkg.ID.Nv.Version}
		if _, err := e.npmCache.EnsurePackage(e.registryHost, nv, dist); err != nil {
			return fmt.Errorf("fetching %s: %w", pkg.ID, err)
		}
	}
	return nil
}

// npmGraphIndex backs the module graph's node/npm-req resolvers: which
// npm package id a given referrer specifier belongs to, and where a
// package id's entry module lives on disk.
type npmGraphIndex struct {
	referrerPackage map[string]resolver.NpmPackageId
	packageEntry    func(id resolver.NpmPackageId) (modpath.Specifier, error)
}

// buildNpmGraphIndex walks every incorporated package's extracted
// directory on disk, indexing each source file's file: specifier against
// the package id it belongs to.
func buildNpmGraphIndex(e *env, snapshot *resolver.NpmResolutionSnapshot) (*npmGraphIndex, error) {
	referrerPackage := map[string]resolver.NpmPackageId{}
	for _, pkg := range snapshot.Packages {
		dir := e.npmCache.PackageDir(e.registryHost, npmcache.PackageNv{Name: pkg.ID.Nv.Name, Version: pkg.ID.Nv.Version})
		err := filepath.WalkDir(dir.String(), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || !isSourceFile(path) {
				return nil
			}
			spec := modpath.FromFilePath(modpath.AbsolutePathFromUpstream(path))
			referrerPackage[spec.String()] = pkg.ID
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("indexing %s: %w", pkg.ID, err)
		}
	}

	entryOf := func(id resolver.NpmPackageId) (modpath.Specifier, error) {
		dir := e.npmCache.PackageDir(e.registryHost, npmcache.PackageNv{Name: id.Nv.Name, Version: id.Nv.Version})
		entry, err := packageEntryFile(dir)
		if err != nil {
			return modpath.Specifier{}, err
		}
		return modpath.FromFilePath(entry), nil
	}

	return &npmGraphIndex{referrerPackage: referrerPackage, packageEntry: entryOf}, nil
}

func isSourceFile(path string) bool {
	switch filepath.Ext(path) {
	case ".js", ".cjs", ".mjs", ".ts", ".tsx", ".jsx":
		return true
	default:
		return false
	}
}

// packageEntryFile resolves a package directory's main module, per npm's
// "main" field convention with an index.js fallback (the subset of the
// full exports-map algorithm this runtime implements).
func packageEntryFile(dir modpath.AbsolutePath) (modpath.AbsolutePath, error) {
	b, err := os.ReadFile(dir.Join("package.json").String())
	if err == nil {
		var manifest struct {
			Main string `json:"main"`
		}
		if json.Unmarshal(b, &manifest) == nil && manifest.Main != "" {
			main := strings.TrimPrefix(manifest.Main, "./")
			candidate := dir.Join(main)
			if candidate.IsFile() {
				return candidate, nil
			}
		}
	}
	candidate := dir.Join("index.js")
	if candidate.IsFile() {
		return candidate, nil
	}
	return modpath.AbsolutePath(""), fmt.Errorf("no entry module found under %s", dir)
}
