package npmcache

import (
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/moderr"
)

// Cache is the on-disk store of extracted npm package trees, rooted under a
// single global directory and partitioned by registry host so two registries
// serving the same name@version never collide.
type Cache struct {
	root modpath.AbsolutePath

	mu       sync.Mutex
	inflight map[string]*sync.WaitGroup
	errs     map[string]error
}

// New constructs a Cache rooted at root (typically $DENO_DIR/npm).
func New(root modpath.AbsolutePath) *Cache {
	return &Cache{
		root:     root,
		inflight: map[string]*sync.WaitGroup{},
		errs:     map[string]error{},
	}
}

func registryDir(host string) string {
	if host == "" {
		host = "registry.npmjs.org"
	}
	return host
}

// PackageDir returns the extracted directory for nv, fetched through
// registryHost. The directory may not exist yet; callers use EnsurePackage
// to populate it.
func (c *Cache) PackageDir(registryHost string, nv PackageNv) modpath.AbsolutePath {
	return c.root.Join(registryDir(registryHost), nv.Name, nv.Version)
}

// EnsurePackage downloads and extracts nv's tarball into the cache if it is
// not already present, verifying dist's integrity before the extraction is
// made visible. Concurrent calls for the same (registryHost, nv) coalesce:
// exactly one goroutine performs the download and the rest wait for it.
func (c *Cache) EnsurePackage(registryHost string, nv PackageNv, dist Dist) (modpath.AbsolutePath, error) {
	dest := c.PackageDir(registryHost, nv)
	key := registryDir(registryHost) + "/" + nv.String()

	if fi, err := os.Stat(dest.Join("package.json").String()); err == nil && !fi.IsDir() {
		return dest, nil
	}

	c.mu.Lock()
	if wg, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		wg.Wait()
		c.mu.Lock()
		err := c.errs[key]
		c.mu.Unlock()
		return dest, err
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.inflight[key] = wg
	c.mu.Unlock()

	err := c.fetchAndExtract(dest, nv, dist)

	c.mu.Lock()
	c.errs[key] = err
	delete(c.inflight, key)
	c.mu.Unlock()
	wg.Done()

	if err != nil {
		return "", err
	}
	return dest, nil
}

func (c *Cache) fetchAndExtract(dest modpath.AbsolutePath, nv PackageNv, dist Dist) error {
	if dist.Tarball == "" {
		return fmt.Errorf("npm: no tarball URL for %s", nv)
	}
	if _, err := url.Parse(dist.Tarball); err != nil {
		return fmt.Errorf("npm: malformed tarball URL %q: %w", dist.Tarball, err)
	}

	body, err := downloadTarball(dist.Tarball)
	if err != nil {
		return &moderr.OSError{Kind: "ConnectionRefused", Op: "npm tarball fetch", Path: dist.Tarball, Err: err}
	}

	if expected, actual, ok := verifyIntegrity(body, dist); !ok {
		return &moderr.IntegrityCheckFailed{
			Package:       nv.String(),
			Expected:      expected,
			Actual:        actual,
			FetchedTarURL: dist.Tarball,
		}
	}

	tmp := dest.Dir().Join(fmt.Sprintf(".tmp-%s-%d", nv.Version, os.Getpid()))
	if err := tmp.MkdirAll(0o755); err != nil {
		return err
	}
	defer os.RemoveAll(tmp.String())

	if err := extractTarballGzip(body, tmp); err != nil {
		return fmt.Errorf("npm: extracting %s: %w", nv, err)
	}

	if err := dest.Dir().MkdirAll(0o755); err != nil {
		return err
	}
	// Atomically publish: rename the fully extracted temp dir into place.
	// A concurrent reader observes either nothing or the complete tree,
	// never a partial extraction.
	os.RemoveAll(dest.String())
	return os.Rename(tmp.String(), dest.String())
}
