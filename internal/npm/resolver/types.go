// Package resolver builds an NpmResolutionSnapshot from a set of top-level
// package requirements by walking the dependency graph breadth-first,
// selecting versions via semver, and disambiguating peer-dependency
// incorporations of the same package into distinct graph nodes.
package resolver

import (
	"fmt"
	"strings"
)

// PackageNv is an exact, resolved package name and version.
type PackageNv struct {
	Name    string
	Version string
}

func (nv PackageNv) String() string { return nv.Name + "@" + nv.Version }

// ParsePackageNv parses a "name@version" string, scoped-name aware (a
// leading "@scope/name@version" has two "@" characters; the split is on
// the last one).
func ParsePackageNv(s string) (PackageNv, error) {
	name, version, ok := splitLastAt(s)
	if !ok {
		return PackageNv{}, fmt.Errorf("malformed package nv %q", s)
	}
	return PackageNv{Name: name, Version: version}, nil
}

func splitLastAt(s string) (name string, version string, ok bool) {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return "", "", false
	}
	return s[:at], s[at+1:], true
}

// PackageReq is a user-level requirement to be resolved: a name plus an
// npm-style version range (or dist-tag).
type PackageReq struct {
	Name       string
	VersionReq string
}

func (r PackageReq) String() string { return r.Name + "@" + r.VersionReq }

// NpmPackageId is a PackageNv plus the ordered list of peer NVs that
// distinguish this particular peer-resolution copy of the package. Two
// packages with identical PackageNv but different peer resolutions are
// distinct graph nodes.
type NpmPackageId struct {
	Nv    PackageNv
	Peers []PackageNv // sorted by peer name for determinism
}

// String serializes as name@ver_peer1@pver1__peer2@pver2.
func (id NpmPackageId) String() string {
	if len(id.Peers) == 0 {
		return id.Nv.String()
	}
	parts := make([]string, len(id.Peers))
	for i, p := range id.Peers {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s_%s", id.Nv.String(), strings.Join(parts, "__"))
}

// ParseNpmPackageId parses the serialized form produced by
// NpmPackageId.String(): "name@version" optionally followed by
// "_peer1@pver1__peer2@pver2...".
func ParseNpmPackageId(s string) (NpmPackageId, error) {
	nvPart, peersPart, hasPeers := cutOnce(s, "_")
	nv, err := ParsePackageNv(nvPart)
	if err != nil {
		return NpmPackageId{}, err
	}
	if !hasPeers {
		return NpmPackageId{Nv: nv}, nil
	}
	peerStrs := strings.Split(peersPart, "__")
	peers := make([]PackageNv, 0, len(peerStrs))
	for _, ps := range peerStrs {
		peerNv, err := ParsePackageNv(ps)
		if err != nil {
			return NpmPackageId{}, fmt.Errorf("parsing peer %q of %q: %w", ps, s, err)
		}
		peers = append(peers, peerNv)
	}
	return NpmPackageId{Nv: nv, Peers: peers}, nil
}

// cutOnce splits s on sep's peer-suffix delimiter. Package names may
// themselves contain "_" (npm allows it), but semver versions never do,
// so the delimiter is unambiguous: it's the first "_" that appears at or
// after the first "@" in s (everything before that "@" is the package
// name, which may have its own underscores; everything from "@" to the
// delimiter is "@version", which cannot).
func cutOnce(s, sep string) (before string, after string, found bool) {
	first := strings.Index(s, "@")
	if first < 0 {
		return s, "", false
	}
	idx := strings.Index(s[first:], sep)
	if idx < 0 {
		return s, "", false
	}
	splitAt := first + idx
	return s[:splitAt], s[splitAt+1:], true
}

// NpmPackageCacheFolderId is the on-disk identity of a materialized
// package: peer copies sharing code but differing in dependency wiring
// share an Nv and differ only by CopyIndex.
type NpmPackageCacheFolderId struct {
	Nv        PackageNv
	CopyIndex int
}

func (id NpmPackageCacheFolderId) String() string {
	if id.CopyIndex == 0 {
		return id.Nv.String()
	}
	return fmt.Sprintf("%s_%d", id.Nv.String(), id.CopyIndex)
}

// Dist is the subset of registry dist metadata needed to fetch and verify
// a package's tarball.
type Dist struct {
	Tarball   string
	Integrity string
	Shasum    string
}

// SystemInfo constrains which os/cpu combinations a package installs on,
// read from a manifest's "os"/"cpu" fields. Empty slices mean unrestricted.
type SystemInfo struct {
	Os  []string
	Cpu []string
}

// Matches reports whether goos/goarch satisfy this package's os/cpu
// restrictions (npm's convention: entries may be negated with a
// leading "!").
func (s SystemInfo) Matches(goos, goarch string) bool {
	return matchesList(s.Os, goos) && matchesList(s.Cpu, goarch)
}

func matchesList(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	sawPositive := false
	for _, a := range allowed {
		if strings.HasPrefix(a, "!") {
			if strings.TrimPrefix(a, "!") == value {
				return false
			}
			continue
		}
		sawPositive = true
		if a == value {
			return true
		}
	}
	return !sawPositive
}

// NpmResolutionPackage is one node in the resolution graph.
type NpmResolutionPackage struct {
	ID        NpmPackageId
	CopyIndex int
	System    SystemInfo
	Dist      Dist

	// Dependencies maps the alias a package uses internally to the
	// resolved id of the dependency (the alias may differ from the real
	// package name, e.g. npm aliasing "foo": "npm:bar@1.0.0").
	Dependencies map[string]NpmPackageId

	OptionalDependencies     map[string]bool
	OptionalPeerDependencies map[string]bool

	HasBin      bool
	HasScripts  bool
	IsDeprecated bool
	DeprecatedMessage string
}
