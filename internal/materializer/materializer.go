// Package materializer builds the on-disk node_modules tree a resolved npm
// snapshot describes: cache extractions are hard-linked into per-package
// ".deno/<folder-id>" slots and dependency edges become symlinks between
// those slots, so Node's module resolution algorithm finds exactly the
// package version each requirer resolved to.
package materializer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/nightlyone/lockfile"

	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/npm/npmcache"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// Options configures a single Materialize call.
type Options struct {
	// ProjectRoot is the directory whose node_modules tree is being built.
	ProjectRoot modpath.AbsolutePath
	// Snapshot is the resolved dependency graph to materialize.
	Snapshot *resolver.NpmResolutionSnapshot
	// RegistryHost partitions the npm cache; empty means the default registry.
	RegistryHost string
	// Cache is the shared extracted-tarball store.
	Cache *npmcache.Cache
	// RunScripts, when non-nil, is invoked once per package folder id, in
	// sorted folder-id string order (not dependency order: a dependency's
	// scripts are not guaranteed to run before its dependents'), after the
	// tree is wired, to run that
	// package's lifecycle scripts (see internal/lifecycle). A nil value
	// skips lifecycle entirely (e.g. --ignore-scripts).
	RunScripts func(pkg resolver.NpmResolutionPackage, pkgDir modpath.AbsolutePath, binDirs []string) error
	Logger     hclog.Logger
}

// Result reports what Materialize did.
type Result struct {
	FolderCount  int
	Reused       bool // true if the setup cache hash matched and no work was done
	BinShims     []string
}

const (
	nodeModules      = "node_modules"
	denoDir          = ".deno"
	setupCacheFile   = ".setup-cache.bin"
	lockFile         = ".deno.lock"
	initializedMark  = ".initialized"
)

// Materialize builds or reconciles ProjectRoot/node_modules against
// opts.Snapshot, per spec's nine-step algorithm.
func Materialize(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	root := opts.ProjectRoot.Join(nodeModules)
	deno := root.Join(denoDir)
	if err := deno.MkdirAll(0o755); err != nil {
		return nil, err
	}

	// Step 1: acquire the inter-process lock.
	unlock, err := acquireLock(deno.Join(lockFile).String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Step 2: compare the current package set's hash against the stored one.
	currentHash := snapshotHash(opts.Snapshot)
	setupCachePath := deno.Join(setupCacheFile).String()
	previousHash, knownFolders := readSetupCache(setupCachePath)
	if previousHash == currentHash {
		return &Result{Reused: true}, nil
	}
	if err := reconcileStaleFolders(deno, knownFolders, opts.Snapshot); err != nil {
		logger.Warn("node_modules reconcile", "error", err)
	}

	part := opts.Snapshot.AllSystemPackagesPartitioned("", "")
	all := append(append([]resolver.NpmResolutionPackage{}, part.Packages...), part.CopyPackages...)
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })

	// Step 3: ensure cache extraction + hard-link into each package's folder.
	pkgDirs := make(map[string]modpath.AbsolutePath, len(all))
	for _, pkg := range all {
		folderID := pkg.ID.String()
		pkgDir := deno.Join(folderID, nodeModules, pkg.ID.Nv.Name)
		if marker := pkgDir.Dir().Join(initializedMark); !marker.Exists() {
			cacheDir, err := opts.Cache.EnsurePackage(opts.RegistryHost, npmcache.PackageNv(pkg.ID.Nv), npmcache.Dist(pkg.Dist))
			if err != nil {
				return nil, fmt.Errorf("materializer: ensuring %s: %w", pkg.ID, err)
			}
			if err := hardlinkTree(cacheDir.String(), pkgDir.String()); err != nil {
				return nil, fmt.Errorf("materializer: linking %s: %w", pkg.ID, err)
			}
			if err := os.WriteFile(marker.String(), nil, 0o644); err != nil {
				return nil, err
			}
		}
		pkgDirs[folderID] = pkgDir
	}

	// Step 4: wire dependency edges as symlinks, skipping inapplicable optionals.
	for _, pkg := range all {
		parentDir := deno.Join(pkg.ID.String(), nodeModules)
		aliases := make([]string, 0, len(pkg.Dependencies))
		for alias := range pkg.Dependencies {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			depID := pkg.Dependencies[alias]
			if pkg.OptionalDependencies[alias] {
				depPkg, ok := opts.Snapshot.Packages[depID.String()]
				if ok && !depPkg.System.Matches("", "") {
					continue
				}
			}
			target := deno.Join(depID.String(), nodeModules, depID.Nv.Name)
			if err := linkEntry(target.String(), parentDir.Join(alias).String()); err != nil {
				return nil, fmt.Errorf("materializer: wiring %s -> %s: %w", alias, depID, err)
			}
		}
	}

	// Step 5: root-level aliases for top-level requirements. Requirement
	// strings are visited in sorted order, not the order they were supplied
	// in, and the first one to claim an alias wins it.
	reqNames := make([]string, 0, len(opts.Snapshot.PackageReqs))
	for req := range opts.Snapshot.PackageReqs {
		reqNames = append(reqNames, req)
	}
	sort.Strings(reqNames)
	boundAlias := map[string]bool{}
	for _, reqStr := range reqNames {
		req, err := resolver.ParsePackageNv(reqStr) // reqStr is "name@range"; alias == name
		var alias string
		if err != nil {
			alias = reqStr
		} else {
			alias = req.Name
		}
		if boundAlias[alias] {
			continue // later requirement gets no root link; its folder stays under .deno only
		}
		nv := opts.Snapshot.PackageReqs[reqStr]
		id, ok := opts.Snapshot.RootPackages[nv.String()]
		if !ok {
			continue
		}
		target := deno.Join(id.String(), nodeModules, id.Nv.Name)
		if err := linkEntry(target.String(), root.Join(alias).String()); err != nil {
			return nil, fmt.Errorf("materializer: root alias %s: %w", alias, err)
		}
		boundAlias[alias] = true
	}

	// Step 7: collect .bin shims across all packages.
	var shims []string
	binRoot := root.Join(".bin")
	var binDirs []string
	for _, pkg := range all {
		if !pkg.HasBin {
			continue
		}
		binDir := deno.Join(pkg.ID.String(), nodeModules, ".bin")
		binDirs = append(binDirs, binDir.String())
		if entries, err := os.ReadDir(deno.Join(pkg.ID.String(), nodeModules, pkg.ID.Nv.Name, "bin").String()); err == nil {
			if err := binRoot.MkdirAll(0o755); err != nil {
				return nil, err
			}
			for _, e := range entries {
				shims = append(shims, e.Name())
			}
		}
	}
	sort.Strings(binDirs)
	sort.Strings(shims)

	// Step 8: run lifecycle scripts in sorted folder-id order (not dependency order).
	if opts.RunScripts != nil {
		for _, pkg := range all {
			if !pkg.HasScripts {
				continue
			}
			if err := opts.RunScripts(pkg, pkgDirs[pkg.ID.String()], binDirs); err != nil {
				return nil, err
			}
		}
	}

	// Step 9: write the setup cache and release the lock (deferred).
	if err := writeSetupCache(setupCachePath, currentHash, all); err != nil {
		return nil, err
	}

	return &Result{FolderCount: len(all), BinShims: shims}, nil
}

func acquireLock(path string) (release func(), err error) {
	lk, err := lockfile.New(path)
	if err != nil {
		return nil, &moderr.OSError{Kind: "Other", Op: "materializer lock", Path: path, Err: err}
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	tryLock := func() error { return lk.TryLock() }
	if err := backoff.Retry(tryLock, b); err != nil {
		return nil, &moderr.OSError{Kind: "Other", Op: "acquiring .deno.lock", Path: path, Err: err}
	}
	return func() { _ = lk.Unlock() }, nil
}

func snapshotHash(snap *resolver.NpmResolutionSnapshot) string {
	keys := make([]string, 0, len(snap.Packages))
	for k := range snap.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		pkg := snap.Packages[k]
		fmt.Fprintf(h, "%s|%s\n", k, pkg.Dist.Integrity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type setupCache struct {
	Hash    string   `json:"hash"`
	Folders []string `json:"folders"`
}

func readSetupCache(path string) (hash string, folders []string) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", nil
	}
	var sc setupCache
	if err := json.Unmarshal(b, &sc); err != nil {
		return "", nil
	}
	return sc.Hash, sc.Folders
}

func writeSetupCache(path, hash string, pkgs []resolver.NpmResolutionPackage) error {
	folders := make([]string, len(pkgs))
	for i, p := range pkgs {
		folders[i] = p.ID.String()
	}
	b, err := json.Marshal(setupCache{Hash: hash, Folders: folders})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// reconcileStaleFolders removes .deno/<folder-id> directories from a prior
// run that no longer appear in the current snapshot.
func reconcileStaleFolders(deno modpath.AbsolutePath, previousFolders []string, snap *resolver.NpmResolutionSnapshot) error {
	for _, folderID := range previousFolders {
		if _, stillPresent := snap.Packages[folderID]; stillPresent {
			continue
		}
		if err := os.RemoveAll(deno.Join(folderID).String()); err != nil {
			return err
		}
	}
	return nil
}
