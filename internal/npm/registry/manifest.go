// Package registry is a retryable HTTP client for npm registry package
// manifests, memoizing each fetched manifest for the lifetime of the
// process.
package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// VersionManifest is the per-version subset of a registry packument needed
// to resolve and fetch a package.
type VersionManifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	PeerDependenciesMeta map[string]struct {
		Optional bool `json:"optional"`
	} `json:"peerDependenciesMeta"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	Bin                  json.RawMessage   `json:"bin"`
	Scripts              map[string]string `json:"scripts"`
	Os                   []string          `json:"os"`
	Cpu                  []string          `json:"cpu"`
	Deprecated           string            `json:"deprecated"`
	Dist                 struct {
		Tarball string `json:"tarball"`
		Shasum  string `json:"shasum"`
		// Integrity holds the subresource-integrity digest, preferred over
		// Shasum when present.
		Integrity string `json:"integrity"`
	} `json:"dist"`
}

// Packument is the full registry document for a package name: every
// published version plus dist-tags.
type Packument struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]VersionManifest `json:"versions"`
}

// Client fetches and memoizes npm registry packuments.
type Client struct {
	BaseURL    string // e.g. https://registry.npmjs.org, no trailing slash
	HTTPClient *retryablehttp.Client

	mu    sync.Mutex
	cache map[string]*Packument
	errs  map[string]error
}

// NewClient builds a registry Client against baseURL (defaulting to the
// public npm registry when empty).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://registry.npmjs.org"
	}
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.Logger = nil
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: c,
		cache:      map[string]*Packument{},
		errs:       map[string]error{},
	}
}

// Host returns the registry's hostname, used to partition the npm cache.
func (c *Client) Host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Host
}

// Packument fetches (or returns the memoized) packument for name. For a
// scoped package name (@scope/name) the scope and the name are each
// path-escaped and the separating slash is kept as is.
func (c *Client) Packument(name string) (*Packument, error) {
	c.mu.Lock()
	if p, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return p, nil
	}
	if err, ok := c.errs[name]; ok {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	p, err := c.fetchPackument(name)

	c.mu.Lock()
	if err != nil {
		c.errs[name] = err
	} else {
		c.cache[name] = p
	}
	c.mu.Unlock()

	return p, err
}

func (c *Client) fetchPackument(name string) (*Packument, error) {
	reqURL := c.BaseURL + "/" + encodePackageName(name)
	req, err := retryablehttp.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8, */*")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching npm manifest for %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("npm package %q not found on %s", name, c.BaseURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("npm registry returned %s for %q", resp.Status, name)
	}

	var p Packument
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding npm manifest for %q: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	return &p, nil
}

// ResolveVersion fetches the VersionManifest for name@version, applying
// dist-tags (e.g. "latest") if version names one.
func (c *Client) ResolveVersion(name, version string) (VersionManifest, error) {
	p, err := c.Packument(name)
	if err != nil {
		return VersionManifest{}, err
	}
	if tagged, ok := p.DistTags[version]; ok {
		version = tagged
	}
	vm, ok := p.Versions[version]
	if !ok {
		return VersionManifest{}, fmt.Errorf("npm package %q has no published version %q", name, version)
	}
	if vm.Dist.Tarball == "" {
		vm.Dist.Tarball = defaultTarballURL(c.BaseURL, name, version)
	}
	return vm, nil
}

// defaultTarballURL reconstructs the conventional tarball location when a
// registry manifest omits dist.tarball (private registries sometimes do).
func defaultTarballURL(baseURL, name, version string) string {
	bare := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		bare = name[idx+1:]
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", baseURL, encodePackageName(name), bare, version)
}

func encodePackageName(name string) string {
	if !strings.HasPrefix(name, "@") {
		return name
	}
	scope, rest, found := strings.Cut(name, "/")
	if !found {
		return name
	}
	return url.PathEscape(scope) + "/" + rest
}
