// Package modpath teaches the Go type system about the path shapes the
// runtime juggles: an absolute filesystem path, a path anchored at some
// root (a cache root, a materialized package folder) without knowledge of
// what that root is, and a module specifier, which is always an absolute
// URL regardless of scheme.
//
// Keeping these as distinct types means a filesystem path and a specifier
// can never be passed to the wrong parameter by accident; the compiler
// enforces the conversion.
package modpath

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Scheme enumerates the module specifier schemes this runtime understands.
type Scheme string

// Recognized specifier schemes, per the data model.
const (
	SchemeFile  Scheme = "file"
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeData  Scheme = "data"
	SchemeBlob  Scheme = "blob"
	SchemeNpm   Scheme = "npm"
	SchemeJsr   Scheme = "jsr"
	SchemeNode  Scheme = "node"
)

// Specifier is the canonical address of a loadable module: an absolute URL.
type Specifier struct {
	raw    string
	parsed *url.URL
}

// ParseSpecifier parses s as an absolute module specifier. Relative
// specifiers must be resolved against a referrer before reaching this type.
func ParseSpecifier(s string) (Specifier, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Specifier{}, fmt.Errorf("invalid module specifier %q: %w", s, err)
	}
	if !u.IsAbs() {
		return Specifier{}, fmt.Errorf("module specifier %q is not absolute", s)
	}
	return Specifier{raw: u.String(), parsed: u}, nil
}

// FromUpstream casts a string to a Specifier without validation. Use only
// when the caller has already verified the string is a well-formed absolute
// URL (e.g. it was itself produced by Specifier.String()).
func FromUpstream(s string) Specifier {
	u, _ := url.Parse(s)
	return Specifier{raw: s, parsed: u}
}

// FromFilePath builds a file: specifier from an OS-native absolute path.
func FromFilePath(p AbsolutePath) Specifier {
	unix := filepath.ToSlash(p.String())
	if !strings.HasPrefix(unix, "/") {
		unix = "/" + unix
	}
	return FromUpstream("file://" + unix)
}

// Scheme returns the specifier's scheme.
func (s Specifier) Scheme() Scheme {
	if s.parsed == nil {
		return ""
	}
	return Scheme(s.parsed.Scheme)
}

// Host returns the specifier's host, if any (http(s)/npm registry host).
func (s Specifier) Host() string {
	if s.parsed == nil {
		return ""
	}
	return s.parsed.Host
}

// Path returns the specifier's path component.
func (s Specifier) Path() string {
	if s.parsed == nil {
		return ""
	}
	return s.parsed.Path
}

// String returns the specifier in canonical string form.
func (s Specifier) String() string {
	return s.raw
}

// ResolveRelative resolves a relative specifier string against this
// specifier acting as the referrer, the way an import statement's relative
// specifier is resolved against the importing module's own specifier.
func (s Specifier) ResolveRelative(ref string) (Specifier, error) {
	if s.parsed == nil {
		return Specifier{}, fmt.Errorf("cannot resolve %q against an empty referrer", ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Specifier{}, fmt.Errorf("invalid specifier %q: %w", ref, err)
	}
	resolved := s.parsed.ResolveReference(u)
	return Specifier{raw: resolved.String(), parsed: resolved}, nil
}

// IsRemote reports whether the specifier must be fetched over the network.
func (s Specifier) IsRemote() bool {
	switch s.Scheme() {
	case SchemeHTTP, SchemeHTTPS:
		return true
	default:
		return false
	}
}

// Equal compares two specifiers by their canonical string form.
func (s Specifier) Equal(other Specifier) bool {
	return s.raw == other.raw
}
