package resolver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	versions  map[string][]string
	manifests map[string]PackageManifest // "name@version" -> manifest
}

func (f *fakeFetcher) AvailableVersions(name string) ([]string, error) {
	v, ok := f.versions[name]
	if !ok {
		return nil, fmt.Errorf("unknown package %q", name)
	}
	return v, nil
}

func (f *fakeFetcher) Manifest(name, version string) (PackageManifest, error) {
	m, ok := f.manifests[name+"@"+version]
	if !ok {
		return PackageManifest{}, fmt.Errorf("no manifest for %s@%s", name, version)
	}
	return m, nil
}

func TestResolveSimpleChain(t *testing.T) {
	f := &fakeFetcher{
		versions: map[string][]string{
			"chalk":          {"5.2.0", "5.3.0"},
			"ansi-styles":    {"6.2.1"},
		},
		manifests: map[string]PackageManifest{
			"chalk@5.3.0": {
				Dependencies: map[string]string{"ansi-styles": "^6.0.0"},
				Dist:         Dist{Tarball: "https://example.test/chalk-5.3.0.tgz"},
			},
			"ansi-styles@6.2.1": {
				Dist: Dist{Tarball: "https://example.test/ansi-styles-6.2.1.tgz"},
			},
		},
	}

	r := NewResolver(f)
	snap, diags, err := r.Resolve([]PackageReq{{Name: "chalk", VersionReq: "^5.0.0"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, diags)

	chalkPkg, err := snap.ResolvePkgFromPkgReq(PackageReq{Name: "chalk", VersionReq: "^5.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "5.3.0", chalkPkg.ID.Nv.Version)

	ansiID, ok := chalkPkg.Dependencies["ansi-styles"]
	require.True(t, ok)
	assert.Equal(t, "ansi-styles", ansiID.Nv.Name)
	assert.Equal(t, "6.2.1", ansiID.Nv.Version)
}

func TestResolveUnmetPeerDependencyWarns(t *testing.T) {
	f := &fakeFetcher{
		versions: map[string][]string{
			"plugin": {"1.0.0"},
		},
		manifests: map[string]PackageManifest{
			"plugin@1.0.0": {
				PeerDependencies: map[string]string{"host": "^2.0.0"},
				Dist:             Dist{Tarball: "https://example.test/plugin-1.0.0.tgz"},
			},
		},
	}

	r := NewResolver(f)
	_, diags, err := r.Resolve([]PackageReq{{Name: "plugin", VersionReq: "1.0.0"}}, nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.True(t, diags[0].IsWarning())
}

func TestResolvePeerDisambiguationProducesDistinctIds(t *testing.T) {
	// b depends on a via a peer; two top-level packages each pull in a
	// different version of "a" as a direct dependency and "b" as a peer
	// consumer, producing two NpmPackageId copies of b sharing one Nv.
	f := &fakeFetcher{
		versions: map[string][]string{
			"a": {"1.0.0", "2.0.0"},
			"b": {"1.0.0"},
			"consumer-one": {"1.0.0"},
			"consumer-two": {"1.0.0"},
		},
		manifests: map[string]PackageManifest{
			"consumer-one@1.0.0": {
				Dependencies: map[string]string{"a": "1.0.0", "b": "1.0.0"},
				Dist:         Dist{Tarball: "t"},
			},
			"consumer-two@1.0.0": {
				Dependencies: map[string]string{"a": "2.0.0", "b": "1.0.0"},
				Dist:         Dist{Tarball: "t"},
			},
			"a@1.0.0": {Dist: Dist{Tarball: "t"}},
			"a@2.0.0": {Dist: Dist{Tarball: "t"}},
			"b@1.0.0": {
				PeerDependencies: map[string]string{"a": "*"},
				Dist:             Dist{Tarball: "t"},
			},
		},
	}

	r := NewResolver(f)
	snap, _, err := r.Resolve([]PackageReq{
		{Name: "consumer-one", VersionReq: "1.0.0"},
		{Name: "consumer-two", VersionReq: "1.0.0"},
	}, nil)
	require.NoError(t, err)

	bIDs := snap.PackagesByName["b"]
	assert.Len(t, bIDs, 2, "b should be incorporated twice, once per peer resolution")
	assert.NotEqual(t, bIDs[0], bIDs[1])
	for i, id := range bIDs {
		assert.Equal(t, i, snap.CopyIndexFor(id))
	}
}
