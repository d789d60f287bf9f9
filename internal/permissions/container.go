package permissions

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/AlecAivazis/survey/v2"
	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-hclog"
	"github.com/yookoala/realpath"
)

// grantState is the three-state grant for one permission kind.
type grantState int

const (
	stateDenied grantState = iota
	statePartial
	stateGranted
)

// set holds the grant state and allowlist for one Kind.
type set struct {
	mu        sync.RWMutex
	state     grantState
	allowlist []glob.Glob
	raw       []string
	// granted caches previously-prompted decisions, keyed by descriptor subject.
	granted map[string]bool
}

func newSet() *set {
	return &set{state: stateDenied, granted: map[string]bool{}}
}

// Options configures how a Container is constructed from CLI flags.
type Options struct {
	// Prompt enables interactive terminal prompting for unresolved checks.
	Prompt bool
	Logger hclog.Logger
}

// Container holds per-kind allow/deny state and implements the runtime's
// single capability check entrypoint.
type Container struct {
	kinds  map[Kind]*set
	opts   Options
	logger hclog.Logger
}

// NewContainer builds a Container from per-kind allowlists. An entry of
// "*" (or an empty, non-nil slice under the "all" convention used by -A)
// grants the kind unconditionally; absence of the kind means Denied.
func NewContainer(grants map[Kind][]string, allKinds bool, opts Options) (*Container, error) {
	c := &Container{kinds: map[Kind]*set{}, opts: opts, logger: opts.Logger}
	if c.logger == nil {
		c.logger = hclog.NewNullLogger()
	}
	for _, k := range []Kind{KindRead, KindWrite, KindNet, KindEnv, KindRun, KindSys, KindFfi} {
		s := newSet()
		if allKinds {
			s.state = stateGranted
		}
		c.kinds[k] = s
	}
	for kind, patterns := range grants {
		s, ok := c.kinds[kind]
		if !ok {
			return nil, fmt.Errorf("unknown permission kind %q", kind)
		}
		if len(patterns) == 0 || slices.Contains(patterns, "*") {
			s.state = stateGranted
			continue
		}
		s.state = statePartial
		s.raw = patterns
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q for %s: %w", p, kind, err)
			}
			s.allowlist = append(s.allowlist, g)
		}
	}
	return c, nil
}

// Check performs a single capability decision for descriptor, used by name
// in the resulting error message when denied.
func (c *Container) Check(d Descriptor, apiName string) error {
	s, ok := c.kinds[d.Kind]
	if !ok {
		return fmt.Errorf("unknown permission kind %q", d.Kind)
	}

	normalized := d
	if d.Kind == KindRead || d.Kind == KindWrite || d.Kind == KindFfi {
		normalized.Path = normalizePath(d.Path)
	}

	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	switch state {
	case stateGranted:
		return nil
	case stateDenied:
		// fall through to optional interactive prompt below
	case statePartial:
		if c.matches(s, normalized) {
			return nil
		}
	}

	if c.opts.Prompt {
		if granted, asked := c.consultCache(s, normalized); asked {
			if granted {
				return nil
			}
			return c.deny(normalized, apiName)
		}
		if c.promptUser(normalized) {
			c.cacheDecision(s, normalized, true)
			return nil
		}
		c.cacheDecision(s, normalized, false)
	}

	return c.deny(normalized, apiName)
}

func (c *Container) deny(d Descriptor, apiName string) error {
	c.logger.Debug("permission denied", "descriptor", d.String(), "op", apiName)
	return &moderr.PermissionDenied{
		Kind:       string(d.Kind),
		Descriptor: d.subject(),
		APIName:    apiName,
	}
}

// CheckAll requires the kind to be unconditionally granted, with no
// allowlist consultation — used for ops that can't be scoped to a subject
// (e.g. listing all environment variables).
func (c *Container) CheckAll(kind Kind, apiName string) error {
	s, ok := c.kinds[kind]
	if !ok {
		return fmt.Errorf("unknown permission kind %q", kind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == stateGranted {
		return nil
	}
	return c.deny(Descriptor{Kind: kind}, apiName)
}

// Revoke narrows a previously granted kind to Denied. Permissions may only
// ever be narrowed at runtime, never broadened, except via the interactive
// prompt path in Check.
func (c *Container) Revoke(kind Kind) {
	s, ok := c.kinds[kind]
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateDenied
	s.allowlist = nil
	s.raw = nil
}

func (c *Container) matches(s *set, d Descriptor) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch d.Kind {
	case KindRead, KindWrite, KindFfi:
		target := filepath.ToSlash(d.Path.String())
		for _, g := range s.allowlist {
			if g.Match(target) {
				return true
			}
		}
		return false
	case KindNet:
		return matchesHost(s.raw, d.Host)
	default:
		for _, g := range s.allowlist {
			if g.Match(d.subject()) {
				return true
			}
		}
		return false
	}
}

// matchesHost implements the spec's "exact host, then port wildcard" rule.
func matchesHost(allow []string, host string) bool {
	reqHost, reqPort, err := net.SplitHostPort(host)
	if err != nil {
		reqHost = host
		reqPort = ""
	}
	for _, a := range allow {
		allowHost, allowPort, err := net.SplitHostPort(a)
		if err != nil {
			allowHost = a
			allowPort = ""
		}
		if allowHost != reqHost {
			continue
		}
		if allowPort == "" || allowPort == reqPort {
			return true
		}
	}
	return false
}

// normalizePath resolves d to an absolute path without touching the
// symlink it may point at: the check target itself is left exactly as
// given (symlinks untouched at check time), only relative/`.`/`..`
// components are collapsed.
func normalizePath(p modpath.AbsolutePath) modpath.AbsolutePath {
	abs, err := filepath.Abs(p.String())
	if err != nil {
		return p
	}
	return modpath.AbsolutePathFromUpstream(filepath.Clean(abs))
}

// realPathForDisplay resolves symlinks purely for presenting a
// human-readable path in a prompt; it never changes the path actually
// checked against the allowlist.
func realPathForDisplay(p modpath.AbsolutePath) string {
	resolved, err := realpath.Realpath(p.String())
	if err != nil {
		return p.String()
	}
	return resolved
}

func (c *Container) consultCache(s *set, d Descriptor) (granted bool, asked bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.granted[d.subject()]
	return v, ok
}

func (c *Container) cacheDecision(s *set, d Descriptor, granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted[d.subject()] = granted
}

func (c *Container) promptUser(d Descriptor) bool {
	label := d.subject()
	if d.Kind == KindRead || d.Kind == KindWrite || d.Kind == KindFfi {
		label = realPathForDisplay(d.Path)
	}
	if !isInteractive() {
		return false
	}
	var granted bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Allow %s access to %q?", d.Kind, label),
		Default: false,
	}
	if err := survey.AskOne(prompt, &granted); err != nil {
		return false
	}
	return granted
}

func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// ParseHostPattern validates a --allow-net host[:port] pattern early, at
// flag-parsing time, so a malformed flag fails fast rather than at the
// first op check.
func ParseHostPattern(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty host pattern")
	}
	if host, port, err := net.SplitHostPort(s); err == nil {
		if _, err := strconv.Atoi(port); err != nil && port != "*" {
			return "", fmt.Errorf("invalid port in %q", s)
		}
		return host + ":" + port, nil
	}
	return s, nil
}
