package resolver

import (
	"fmt"
	"sort"

	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/npm/semverutil"
)

// Diagnostic accumulates non-fatal resolution warnings (unmet peer deps)
// alongside a successful Resolve call.
type Diagnostic struct {
	*moderr.ResolutionError
}

// Resolver walks a set of top-level requirements to a full
// NpmResolutionSnapshot.
type Resolver struct {
	Fetcher Fetcher
}

// NewResolver builds a Resolver backed by fetcher.
func NewResolver(fetcher Fetcher) *Resolver {
	return &Resolver{Fetcher: fetcher}
}

// ancestor links a resolved node to its parent for the peer "nearest
// ancestor-sibling" walk: siblings holds every dependency that parent
// resolved, by real package name, so a peer lookup can inspect them.
type ancestor struct {
	parent   *ancestor
	siblings map[string]PackageNv // real name -> resolved nv
}

type workItem struct {
	alias      string // the key used in the parent's Dependencies map
	req        PackageReq
	parent     *ancestor
	parentID   *NpmPackageId // nil for top-level requirements
	isOptional bool
}

// Resolve processes reqs (in input order) breadth-first, starting from an
// optional prior snapshot: a version already resolved there is kept
// whenever it satisfies the requested range, even if a higher matching
// version exists. It never mutates start.
func (r *Resolver) Resolve(reqs []PackageReq, start *NpmResolutionSnapshot) (*NpmResolutionSnapshot, []Diagnostic, error) {
	snap := newSnapshot()
	var preferred map[string]string // name -> version already in start, for tie-break
	if start != nil {
		preferred = map[string]string{}
		for _, nv := range start.RootPackages {
			preferred[nv.Nv.Name] = nv.Nv.Version
		}
	}

	var diagnostics []Diagnostic
	var queue []workItem
	root := &ancestor{siblings: map[string]PackageNv{}}
	for _, req := range reqs {
		queue = append(queue, workItem{alias: req.Name, req: req, parent: root})
	}

	seen := map[string]bool{} // NpmPackageId.String() already enqueued-for-deps

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		versions, err := r.Fetcher.AvailableVersions(item.req.Name)
		if err != nil {
			return nil, nil, &moderr.ResolutionError{
				Kind:    moderr.RegistryManifestError,
				Package: item.req.Name,
				Detail:  err.Error(),
			}
		}

		pref := ""
		if preferred != nil {
			pref = preferred[item.req.Name]
		}
		version, err := semverutil.HighestSatisfying(versions, item.req.VersionReq, pref)
		if err != nil {
			return nil, nil, &moderr.ResolutionError{
				Kind:    moderr.NoMatchingVersion,
				Package: item.req.String(),
				Detail:  err.Error(),
			}
		}
		nv := PackageNv{Name: item.req.Name, Version: version}

		manifest, err := r.Fetcher.Manifest(item.req.Name, version)
		if err != nil {
			return nil, nil, &moderr.ResolutionError{
				Kind:    moderr.RegistryManifestError,
				Package: nv.String(),
				Detail:  err.Error(),
			}
		}

		peers, peerDiags := resolvePeers(manifest, item.parent)
		diagnostics = append(diagnostics, peerDiags...)

		id := NpmPackageId{Nv: nv, Peers: peers}

		if item.parentID == nil {
			if existing, ok := snap.PackageReqs[item.req.String()]; !ok || existing != nv {
				snap.PackageReqs[item.req.String()] = nv
			}
			if _, ok := snap.RootPackages[nv.String()]; !ok {
				snap.RootPackages[nv.String()] = id
			}
		} else if parentPkg, ok := snap.Packages[item.parentID.String()]; ok {
			parentPkg.Dependencies[item.alias] = id
			if item.isOptional {
				parentPkg.OptionalDependencies[item.alias] = true
			}
			snap.Packages[item.parentID.String()] = parentPkg
		}

		item.parent.siblings[item.req.Name] = nv

		if seen[id.String()] {
			continue
		}
		seen[id.String()] = true

		pkg := NpmResolutionPackage{
			ID:                       id,
			Dist:                     manifest.Dist,
			System:                   manifest.System,
			Dependencies:             map[string]NpmPackageId{},
			OptionalDependencies:     map[string]bool{},
			OptionalPeerDependencies: map[string]bool{},
			HasBin:                   manifest.HasBin,
			HasScripts:               manifest.HasScripts,
			IsDeprecated:             manifest.Deprecated != "",
			DeprecatedMessage:        manifest.Deprecated,
		}

		childAncestor := &ancestor{parent: item.parent, siblings: map[string]PackageNv{}}

		depNames := sortedKeys(manifest.Dependencies)
		for _, alias := range depNames {
			verReq := manifest.Dependencies[alias]
			realName, realReq := splitAliasTarget(alias, verReq)
			queue = append(queue, workItem{
				alias:    alias,
				req:      PackageReq{Name: realName, VersionReq: realReq},
				parent:   childAncestor,
				parentID: &id,
			})
		}
		optNames := sortedKeys(manifest.OptionalDependencies)
		for _, alias := range optNames {
			verReq := manifest.OptionalDependencies[alias]
			pkg.OptionalDependencies[alias] = true
			queue = append(queue, workItem{
				alias:      alias,
				req:        PackageReq{Name: alias, VersionReq: verReq},
				parent:     childAncestor,
				parentID:   &id,
				isOptional: true,
			})
		}

		snap.addPackage(pkg)
	}

	return snap, diagnostics, nil
}

// resolvePeers implements the nearest ancestor-sibling rule: for each peer
// dependency, walk up the ancestor chain inspecting each level's resolved
// siblings for a version matching the peer's range. The first match wins.
// Unmet peers are only reported as warnings in the returned diagnostics;
// no version of an unmet peer is resolved or installed.
func resolvePeers(manifest PackageManifest, parent *ancestor) ([]PackageNv, []Diagnostic) {
	if len(manifest.PeerDependencies) == 0 {
		return nil, nil
	}
	names := sortedKeys(manifest.PeerDependencies)
	var peers []PackageNv
	var diags []Diagnostic

	for _, name := range names {
		req := manifest.PeerDependencies[name]
		found := false
		for a := parent; a != nil; a = a.parent {
			if nv, ok := a.siblings[name]; ok {
				if ok2, _ := semverutil.Satisfies(nv.Version, req); ok2 {
					peers = append(peers, nv)
					found = true
					break
				}
			}
		}
		if !found && !manifest.OptionalPeerDependencies[name] {
			diags = append(diags, Diagnostic{&moderr.ResolutionError{
				Kind:    moderr.UnmetPeerDep,
				Package: name,
				Detail:  fmt.Sprintf("required range %q not satisfied by any ancestor", req),
			}})
		}
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })
	return peers, diags
}

// splitAliasTarget returns the real package name and version requirement
// for a dependency entry, unwrapping npm's "npm:real-name@range" alias
// target syntax when present.
func splitAliasTarget(alias, verReq string) (name string, req string) {
	const prefix = "npm:"
	if len(verReq) > len(prefix) && verReq[:len(prefix)] == prefix {
		rest := verReq[len(prefix):]
		for i := len(rest) - 1; i >= 0; i-- {
			if rest[i] == '@' && i > 0 {
				return rest[:i], rest[i+1:]
			}
		}
		return rest, "*"
	}
	return alias, verReq
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
