package resolver

import (
	"fmt"
	"runtime"
	"sort"

	mapset "github.com/deckarep/golang-set"
)

// NpmResolutionSnapshot is the immutable dependency graph produced by a
// Resolve call. A new snapshot wholesale-replaces the previous one when
// requirements change; it is what the lockfile persists.
type NpmResolutionSnapshot struct {
	PackageReqs     map[string]PackageNv         // PackageReq.String() -> selected nv
	RootPackages    map[string]NpmPackageId       // PackageNv.String() -> id of the root-level incorporation
	PackagesByName  map[string][]NpmPackageId     // name -> every id incorporated anywhere in the graph
	Packages        map[string]NpmResolutionPackage // NpmPackageId.String() -> node
}

func newSnapshot() *NpmResolutionSnapshot {
	return &NpmResolutionSnapshot{
		PackageReqs:    map[string]PackageNv{},
		RootPackages:   map[string]NpmPackageId{},
		PackagesByName: map[string][]NpmPackageId{},
		Packages:       map[string]NpmResolutionPackage{},
	}
}

// NewSnapshot returns an empty snapshot, for callers building one outside
// of Resolve (e.g. reconstructing one from a lockfile).
func NewSnapshot() *NpmResolutionSnapshot {
	return newSnapshot()
}

// AddPackage inserts pkg into the snapshot, indexing it by name. Exported
// for callers that build a snapshot directly from a serialized source
// rather than via Resolve.
func (s *NpmResolutionSnapshot) AddPackage(pkg NpmResolutionPackage) {
	s.addPackage(pkg)
}

func (s *NpmResolutionSnapshot) addPackage(pkg NpmResolutionPackage) {
	key := pkg.ID.String()
	if _, exists := s.Packages[key]; exists {
		return
	}
	s.Packages[key] = pkg
	s.PackagesByName[pkg.ID.Nv.Name] = append(s.PackagesByName[pkg.ID.Nv.Name], pkg.ID)
}

// ResolvePkgFromPkgReq looks up the package satisfying a top-level
// requirement, by the requirement's exact original text.
func (s *NpmResolutionSnapshot) ResolvePkgFromPkgReq(req PackageReq) (NpmResolutionPackage, error) {
	nv, ok := s.PackageReqs[req.String()]
	if !ok {
		return NpmResolutionPackage{}, fmt.Errorf("no resolution recorded for requirement %s", req)
	}
	id, ok := s.RootPackages[nv.String()]
	if !ok {
		return NpmResolutionPackage{}, fmt.Errorf("requirement %s resolved to %s but it has no root incorporation", req, nv)
	}
	return s.Packages[id.String()], nil
}

// ResolvePkgFromPkgCacheFolderId looks up a package by its on-disk identity.
// Since CopyIndex is derived from first-appearance order among ids sharing
// an Nv, this walks PackagesByName[nv.Name] in insertion order.
func (s *NpmResolutionSnapshot) ResolvePkgFromPkgCacheFolderId(id NpmPackageCacheFolderId) (NpmResolutionPackage, error) {
	copyIdx := 0
	for _, candidateID := range s.PackagesByName[id.Nv.Name] {
		if candidateID.Nv != id.Nv {
			continue
		}
		if copyIdx == id.CopyIndex {
			return s.Packages[candidateID.String()], nil
		}
		copyIdx++
	}
	return NpmResolutionPackage{}, fmt.Errorf("no package matches cache folder id %s", id)
}

// ResolvePackageFromPackage implements Node-style nearest-ancestor lookup:
// given the package performing the require (referrer) and the alias it is
// requiring, find the dependency it resolved to during graph construction.
func (s *NpmResolutionSnapshot) ResolvePackageFromPackage(referrer NpmPackageId, alias string) (NpmResolutionPackage, error) {
	referrerPkg, ok := s.Packages[referrer.String()]
	if !ok {
		return NpmResolutionPackage{}, fmt.Errorf("unknown referrer %s", referrer)
	}
	depID, ok := referrerPkg.Dependencies[alias]
	if !ok {
		return NpmResolutionPackage{}, fmt.Errorf("%s has no dependency aliased %q", referrer, alias)
	}
	return s.Packages[depID.String()], nil
}

// CopyIndexFor derives a package's on-disk copy_index from the order in
// which ids sharing its Nv first appeared in the graph.
func (s *NpmResolutionSnapshot) CopyIndexFor(id NpmPackageId) int {
	for i, candidateID := range s.PackagesByName[id.Nv.Name] {
		if candidateID == id {
			return i
		}
	}
	return 0
}

// SystemPartition splits a snapshot's packages into primary incorporations
// (CopyIndex 0) and peer-disambiguated copies for a given os/arch.
type SystemPartition struct {
	Packages     []NpmResolutionPackage
	CopyPackages []NpmResolutionPackage
}

// AllSystemPackagesPartitioned returns every package applicable to goos/
// goarch, split into primary packages and peer copies.
func (s *NpmResolutionSnapshot) AllSystemPackagesPartitioned(goos, goarch string) SystemPartition {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	var part SystemPartition
	keys := make([]string, 0, len(s.Packages))
	for k := range s.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pkg := s.Packages[k]
		if !pkg.System.Matches(goos, goarch) {
			continue
		}
		if s.CopyIndexFor(pkg.ID) == 0 {
			part.Packages = append(part.Packages, pkg)
		} else {
			part.CopyPackages = append(part.CopyPackages, pkg)
		}
	}
	return part
}

// AsValidSerializedForSystem strips optional dependencies that don't apply
// to goos/goarch, returning a new snapshot. Applying this twice in a row
// produces the same result as applying it once.
func (s *NpmResolutionSnapshot) AsValidSerializedForSystem(goos, goarch string) *NpmResolutionSnapshot {
	out := newSnapshot()
	for k, v := range s.PackageReqs {
		out.PackageReqs[k] = v
	}
	for k, v := range s.RootPackages {
		out.RootPackages[k] = v
	}

	part := s.AllSystemPackagesPartitioned(goos, goarch)
	applicable := mapset.NewSet()
	for _, pkg := range append(part.Packages, part.CopyPackages...) {
		applicable.Add(pkg.ID.String())
	}

	for key, pkg := range s.Packages {
		if !applicable.Contains(key) {
			continue
		}
		filtered := pkg
		filtered.Dependencies = map[string]NpmPackageId{}
		for alias, depID := range pkg.Dependencies {
			if pkg.OptionalDependencies[alias] && !applicable.Contains(depID.String()) {
				continue
			}
			filtered.Dependencies[alias] = depID
		}
		out.addPackage(filtered)
	}
	return out
}
