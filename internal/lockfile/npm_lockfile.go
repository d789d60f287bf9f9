package lockfile

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/fspath"
)

// currentLockfileVersion is always written on Encode; versions 2 and 3 are
// read-compatible via DecodeNpmLockfile but never produced.
const currentLockfileVersion = "4"

// NpmLockfile is the on-disk v4 lockfile: a monotonic version, the
// specifier-to-resolution map, remote (non-npm) module integrity records,
// and the npm packages table keyed by NpmPackageId string.
type NpmLockfile struct {
	Version     string               `json:"version"`
	Specifiers  map[string]string    `json:"specifiers,omitempty"`
	Remote      map[string]string    `json:"remote,omitempty"`
	NpmPackages map[string]NpmEntry  `json:"npm,omitempty"`
}

// NpmEntry is one resolved npm package in the lockfile's "npm" table,
// keyed externally by "<name>@<version>[_peer_suffix]".
type NpmEntry struct {
	Integrity            string            `json:"integrity,omitempty"`
	Dependencies         []string          `json:"dependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	Os                   []string          `json:"os,omitempty"`
	Cpu                  []string          `json:"cpu,omitempty"`
	Bin                  bool              `json:"bin,omitempty"`
	Scripts              bool              `json:"scripts,omitempty"`
	Deprecated           bool              `json:"deprecated,omitempty"`
}

var _ Lockfile = (*NpmLockfile)(nil)

// ResolvePackage implements Lockfile by treating workspacePath as unused
// (npm v4 entries are keyed by package id, not by filesystem location) and
// resolving name/version directly against the npm table: an exact
// "name@version" key wins; otherwise any entry keyed "name@version_<peer>"
// is returned, and when several exist which one is not defined (map order).
func (l *NpmLockfile) ResolvePackage(workspacePath fspath.AnchoredUnixPath, name string, version string) (Package, error) {
	prefix := name + "@" + version
	if entry, ok := l.NpmPackages[prefix]; ok {
		_ = entry
		return Package{Key: prefix, Version: version, Found: true}, nil
	}
	for key := range l.NpmPackages {
		if key == prefix || strings.HasPrefix(key, prefix+"_") {
			pkgVersion := version
			return Package{Key: key, Version: pkgVersion, Found: true}, nil
		}
	}
	return Package{}, nil
}

// AllDependencies returns the dependencies listed under key as a map from
// package name to the version part of each id (npm v4 entries record
// dependencies as a flat list of "<name>@<version>[_peer]" ids rather than
// name->range pairs), with optional dependencies included.
func (l *NpmLockfile) AllDependencies(key string) (map[string]string, bool) {
	entry, ok := l.NpmPackages[key]
	if !ok {
		return nil, false
	}
	deps := make(map[string]string, len(entry.Dependencies)+len(entry.OptionalDependencies))
	for _, depID := range entry.Dependencies {
		name, version := splitIDNameVersion(depID)
		deps[name] = version
	}
	for depID, version := range entry.OptionalDependencies {
		name, _ := splitIDNameVersion(depID)
		if name == "" {
			name = depID
		}
		deps[name] = version
	}
	return deps, true
}

// Subgraph returns a lockfile containing only the named npm package ids
// plus everything they transitively depend on.
func (l *NpmLockfile) Subgraph(workspacePackages []fspath.AnchoredSystemPath, packages []string) (Lockfile, error) {
	keep := map[string]bool{}
	var walk func(string)
	walk = func(key string) {
		if keep[key] {
			return
		}
		entry, ok := l.NpmPackages[key]
		if !ok {
			return
		}
		keep[key] = true
		for _, dep := range entry.Dependencies {
			walk(dep)
		}
	}
	for _, pkg := range packages {
		if _, ok := l.NpmPackages[pkg]; !ok {
			return nil, fmt.Errorf("no lockfile entry found for %s", pkg)
		}
		walk(pkg)
	}

	pruned := make(map[string]NpmEntry, len(keep))
	for key := range keep {
		pruned[key] = l.NpmPackages[key]
	}
	return &NpmLockfile{
		Version:     currentLockfileVersion,
		Specifiers:  l.Specifiers,
		Remote:      l.Remote,
		NpmPackages: pruned,
	}, nil
}

// GlobalChange reports whether switching to other would invalidate every
// cache entry: a lockfile schema version bump meets that bar.
func (l *NpmLockfile) GlobalChange(other Lockfile) bool {
	o, ok := other.(*NpmLockfile)
	if !ok {
		return true
	}
	return l.Version != o.Version
}

// Patches returns nil: npm lockfiles carry no patch-package overlay list
// (patches are recorded per-package via node_modules materialization, not
// the lockfile).
func (l *NpmLockfile) Patches() []fspath.AnchoredUnixPath {
	return nil
}

// Encode writes the lockfile with sorted map keys and two-space indent so
// re-encoding an untampered lockfile is byte-identical to its source
// (encoding/json already sorts map[string]X keys on marshal).
func (l *NpmLockfile) Encode(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(l)
}

// DecodeNpmLockfile parses a v2/v3/v4 lockfile, validating that every
// dependency id referenced from the npm table actually exists in it.
func DecodeNpmLockfile(content []byte) (*NpmLockfile, error) {
	var l NpmLockfile
	if err := json.Unmarshal(content, &l); err != nil {
		return nil, &moderr.Corrupt{File: "deno.lock", Reason: err.Error()}
	}
	if l.Version == "" {
		return nil, &moderr.Corrupt{File: "deno.lock", Reason: "missing version field"}
	}
	if err := validateReferences(&l); err != nil {
		return nil, err
	}
	return &l, nil
}

func validateReferences(l *NpmLockfile) error {
	for key, entry := range l.NpmPackages {
		for _, depID := range entry.Dependencies {
			if _, ok := l.NpmPackages[depID]; !ok {
				return &moderr.Corrupt{
					File:   "deno.lock",
					Reason: fmt.Sprintf("%q depends on %q, which has no entry in the npm table", key, depID),
				}
			}
		}
	}
	return nil
}

// splitIDNameVersion splits an "<name>@<version>[_peer...]" lockfile id
// back into its bare name and version, trimming any peer-disambiguation
// suffix.
func splitIDNameVersion(id string) (name string, version string) {
	base := id
	if idx := strings.Index(id, "_"); idx >= 0 {
		base = id[:idx]
	}
	at := strings.LastIndex(base, "@")
	if at <= 0 {
		return base, ""
	}
	return base[:at], base[at+1:]
}

// sortedNpmKeys returns a lockfile's npm table keys in sorted order, used
// by callers building deterministic output that doesn't already go through
// encoding/json's own map-key sort (e.g. diagnostics, diffing).
func sortedNpmKeys(l *NpmLockfile) []string {
	keys := make([]string, 0, len(l.NpmPackages))
	for k := range l.NpmPackages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
