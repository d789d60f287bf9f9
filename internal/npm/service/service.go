// Package service adapts internal/npm/registry's wire-format packument
// client to the narrow resolver.Fetcher interface the resolver depends on,
// keeping the resolver itself ignorant of registry JSON shapes.
package service

import (
	"sort"

	"github.com/denoland/deno-sub011/internal/npm/registry"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// RegistryFetcher implements resolver.Fetcher over a registry.Client.
type RegistryFetcher struct {
	Client *registry.Client
}

// NewRegistryFetcher wraps client for use as a resolver.Fetcher.
func NewRegistryFetcher(client *registry.Client) *RegistryFetcher {
	return &RegistryFetcher{Client: client}
}

// AvailableVersions returns every published version string for name.
func (f *RegistryFetcher) AvailableVersions(name string) ([]string, error) {
	p, err := f.Client.Packument(name)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(p.Versions))
	for v := range p.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

// Manifest fetches the resolver-shaped manifest for name@version.
func (f *RegistryFetcher) Manifest(name, version string) (resolver.PackageManifest, error) {
	vm, err := f.Client.ResolveVersion(name, version)
	if err != nil {
		return resolver.PackageManifest{}, err
	}

	optionalPeers := make(map[string]bool, len(vm.PeerDependenciesMeta))
	for peerName, meta := range vm.PeerDependenciesMeta {
		if meta.Optional {
			optionalPeers[peerName] = true
		}
	}

	return resolver.PackageManifest{
		Dependencies:             vm.Dependencies,
		PeerDependencies:         vm.PeerDependencies,
		OptionalPeerDependencies: optionalPeers,
		OptionalDependencies:     vm.OptionalDependencies,
		Dist: resolver.Dist{
			Tarball:   vm.Dist.Tarball,
			Integrity: vm.Dist.Integrity,
			Shasum:    vm.Dist.Shasum,
		},
		System: resolver.SystemInfo{
			Os:  vm.Os,
			Cpu: vm.Cpu,
		},
		HasBin:     len(vm.Bin) > 0,
		HasScripts: len(vm.Scripts) > 0,
		Deprecated: vm.Deprecated,
	}, nil
}
