// Package npm wires the registry client, resolver, and on-disk cache into
// the single entrypoint the module graph and materializer use to work with
// npm: specifiers.
package npm

import (
	"sort"

	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/npm/npmcache"
	"github.com/denoland/deno-sub011/internal/npm/registry"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// Service bundles a registry client, resolver, and tarball cache behind
// the resolver.Fetcher interface.
type Service struct {
	Registry *registry.Client
	Cache    *npmcache.Cache
	Resolver *resolver.Resolver
}

// New builds a Service against registryBaseURL (empty for the public npm
// registry) with tarballs cached under cacheRoot.
func New(registryBaseURL string, cacheRoot modpath.AbsolutePath) *Service {
	reg := registry.NewClient(registryBaseURL)
	s := &Service{
		Registry: reg,
		Cache:    npmcache.New(cacheRoot),
	}
	s.Resolver = resolver.NewResolver(registryFetcher{reg})
	return s
}

// EnsureExtracted materializes id's package contents on disk, downloading
// and verifying the tarball first if needed.
func (s *Service) EnsureExtracted(id resolver.NpmPackageId) (modpath.AbsolutePath, error) {
	nv := npmcache.PackageNv{Name: id.Nv.Name, Version: id.Nv.Version}
	vm, err := s.Registry.ResolveVersion(id.Nv.Name, id.Nv.Version)
	if err != nil {
		return "", err
	}
	dist := npmcache.Dist{
		Tarball:   vm.Dist.Tarball,
		Integrity: vm.Dist.Integrity,
		Shasum:    vm.Dist.Shasum,
	}
	return s.Cache.EnsurePackage(s.Registry.Host(), nv, dist)
}

// registryFetcher adapts registry.Client to resolver.Fetcher.
type registryFetcher struct {
	client *registry.Client
}

func (f registryFetcher) AvailableVersions(name string) ([]string, error) {
	p, err := f.client.Packument(name)
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

func (f registryFetcher) Manifest(name, version string) (resolver.PackageManifest, error) {
	vm, err := f.client.ResolveVersion(name, version)
	if err != nil {
		return resolver.PackageManifest{}, err
	}
	optionalPeers := map[string]bool{}
	for peerName, meta := range vm.PeerDependenciesMeta {
		optionalPeers[peerName] = meta.Optional
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
