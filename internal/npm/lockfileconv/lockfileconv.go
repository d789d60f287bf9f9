// Package lockfileconv converts between an npm NpmResolutionSnapshot and its
// on-disk lockfile representation. SnapshotFromLockfile is pure: it never
// touches the network, reconstructing a full graph from what was already
// recorded on a previous resolve.
package lockfileconv

import (
	"fmt"
	"sort"
	"strings"

	"github.com/denoland/deno-sub011/internal/lockfile"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// SnapshotFromLockfile rebuilds a resolution snapshot from a decoded
// lockfile's npm table, without making any registry calls. The lockfile's
// flat dependency-id lists don't preserve the alias a dependent used to
// require each child (npm's "npm:real-name@range" aliasing), so aliases
// are reconstructed as the dependency's own package name — the common
// case and the only one a v4 lockfile round-trips.
func SnapshotFromLockfile(l *lockfile.NpmLockfile) (*resolver.NpmResolutionSnapshot, error) {
	snap := resolver.NewSnapshot()

	ids := make(map[string]resolver.NpmPackageId, len(l.NpmPackages))
	for key := range l.NpmPackages {
		id, err := resolver.ParseNpmPackageId(key)
		if err != nil {
			return nil, fmt.Errorf("lockfile entry %q: %w", key, err)
		}
		ids[key] = id
	}

	for key, entry := range l.NpmPackages {
		id := ids[key]

		deps := make(map[string]resolver.NpmPackageId, len(entry.Dependencies))
		optionalDeps := map[string]bool{}
		for _, depKey := range entry.Dependencies {
			depID, ok := ids[depKey]
			if !ok {
				return nil, fmt.Errorf("%q depends on %q, which has no lockfile entry", key, depKey)
			}
			deps[depID.Nv.Name] = depID
		}
		for depKey := range entry.OptionalDependencies {
			depID, ok := ids[depKey]
			if ok {
				optionalDeps[depID.Nv.Name] = true
			}
		}

		snap.AddPackage(resolver.NpmResolutionPackage{
			ID: id,
			System: resolver.SystemInfo{
				Os:  entry.Os,
				Cpu: entry.Cpu,
			},
			Dist: resolver.Dist{
				Integrity: entry.Integrity,
			},
			Dependencies:         deps,
			OptionalDependencies: optionalDeps,
			HasBin:               entry.Bin,
			HasScripts:           entry.Scripts,
			IsDeprecated:         entry.Deprecated,
		})
	}

	for specifier, resolved := range l.Specifiers {
		name, versionReq := splitSpecifier(specifier)
		req := resolver.PackageReq{Name: name, VersionReq: versionReq}
		nv, err := resolver.ParsePackageNv(resolved)
		if err != nil {
			continue
		}
		snap.PackageReqs[req.String()] = nv
		if id, ok := findRootID(ids, nv); ok {
			snap.RootPackages[nv.String()] = id
		}
	}

	return snap, nil
}

// LockfileFromSnapshot serializes snap into the v4 on-disk schema.
// Map/slice ordering is always produced sorted so re-encoding is stable.
func LockfileFromSnapshot(snap *resolver.NpmResolutionSnapshot) *lockfile.NpmLockfile {
	specifiers := make(map[string]string, len(snap.PackageReqs))
	for reqKey, nv := range snap.PackageReqs {
		name, versionReq := splitReqKey(reqKey)
		specifiers[joinSpecifier(name, versionReq)] = nv.String()
	}

	packages := make(map[string]lockfile.NpmEntry, len(snap.Packages))
	for key, pkg := range snap.Packages {
		depIDs := make([]string, 0, len(pkg.Dependencies))
		for _, depID := range pkg.Dependencies {
			depIDs = append(depIDs, depID.String())
		}
		sort.Strings(depIDs)

		optionalDeps := map[string]string{}
		for alias := range pkg.OptionalDependencies {
			if depID, ok := pkg.Dependencies[alias]; ok {
				optionalDeps[depID.String()] = depID.Nv.Version
			}
		}

		packages[key] = lockfile.NpmEntry{
			Integrity:            pkg.Dist.Integrity,
			Dependencies:         depIDs,
			OptionalDependencies: optionalDeps,
			Os:                   pkg.System.Os,
			Cpu:                  pkg.System.Cpu,
			Bin:                  pkg.HasBin,
			Scripts:              pkg.HasScripts,
			Deprecated:           pkg.IsDeprecated,
		}
	}

	return &lockfile.NpmLockfile{
		Version:     "4",
		Specifiers:  specifiers,
		NpmPackages: packages,
	}
}

func findRootID(ids map[string]resolver.NpmPackageId, nv resolver.PackageNv) (resolver.NpmPackageId, bool) {
	if id, ok := ids[nv.String()]; ok {
		return id, true
	}
	return resolver.NpmPackageId{}, false
}

// splitSpecifier splits a lockfile "npm:name@req" specifier key back into
// name and version requirement; it also accepts a bare "name@req" for
// lockfiles written without a scheme prefix.
func splitSpecifier(specifier string) (name string, versionReq string) {
	s := strings.TrimPrefix(specifier, "npm:")
	return splitReqKey(s)
}

func joinSpecifier(name, versionReq string) string {
	return "npm:" + name + "@" + versionReq
}

func splitReqKey(s string) (name string, versionReq string) {
	if strings.HasPrefix(s, "@") {
		// scoped package: split on the second '@'.
		rest := s[1:]
		if idx := strings.Index(rest, "@"); idx >= 0 {
			return "@" + rest[:idx], rest[idx+1:]
		}
		return s, ""
	}
	if idx := strings.Index(s, "@"); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}
