// Package httpcache implements the two-tier content-addressed cache of
// fetched module sources (global cache root + optional project-local vendor
// directory) and the scheme-multiplexing file fetcher that sits in front of
// it.
package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/denoland/deno-sub011/internal/modpath"
)

// Policy selects how a cached entry is consulted against a live fetch.
type Policy int

// Cache policies, per the component design.
const (
	// PolicyUse serves from cache if present; fetches on miss.
	PolicyUse Policy = iota
	// PolicyReload always fetches and replaces the cache entry on success.
	PolicyReload
	// PolicyOnlyIfCached fails if the entry is absent.
	PolicyOnlyIfCached
	// PolicyRespectHeaders performs a conditional GET using stored validators.
	PolicyRespectHeaders
)

// Metadata is the sidecar file stored beside each cached body.
type Metadata struct {
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers"`
	ETag         string            `json:"etag,omitempty"`
	LastModified string            `json:"lastModified,omitempty"`
	ContentType  string            `json:"contentType,omitempty"`
	RedirectTo   []string          `json:"redirectChain,omitempty"`
	FetchedAt    time.Time         `json:"fetchedAt"`
}

// Entry is a fully materialized cache hit: body plus metadata.
type Entry struct {
	Body     []byte
	Metadata Metadata
}

// Cache is the two-tier store: a global root (always present) and an
// optional project-local vendor directory consulted first.
type Cache struct {
	globalRoot modpath.AbsolutePath
	vendorDir  *modpath.AbsolutePath
}

// New constructs a Cache rooted at globalRoot, with an optional vendor
// directory checked before the global root.
func New(globalRoot modpath.AbsolutePath, vendorDir *modpath.AbsolutePath) *Cache {
	return &Cache{globalRoot: globalRoot, vendorDir: vendorDir}
}

// hashURL is the one-way hash used to key the global cache by URL. Using a
// fixed-width hex digest keeps cache directory layout flat and filesystem
// safe regardless of URL contents (query strings, unusual characters).
func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) pathsFor(url string) []modpath.AbsolutePath {
	key := hashURL(url)
	paths := []modpath.AbsolutePath{}
	if c.vendorDir != nil {
		paths = append(paths, c.vendorDir.Join(key[:2], key))
	}
	paths = append(paths, c.globalRoot.Join("deps", key[:2], key))
	return paths
}

// Get returns the cached entry for url, preferring the vendor directory
// over the global root, and whether it was found.
func (c *Cache) Get(url string) (Entry, bool) {
	for _, dir := range c.pathsFor(url) {
		body, err := os.ReadFile(dir.Join("body").String())
		if err != nil {
			continue
		}
		var meta Metadata
		metaBytes, err := os.ReadFile(dir.Join("meta.json").String())
		if err != nil {
			continue
		}
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			continue
		}
		return Entry{Body: body, Metadata: meta}, true
	}
	return Entry{}, false
}

// Put writes entry for url into the global cache root using write-then-
// atomic-rename so concurrent readers always observe either the old or the
// new complete file, never a partial one.
func (c *Cache) Put(url string, entry Entry) error {
	key := hashURL(url)
	dir := c.globalRoot.Join("deps", key[:2], key)
	if err := dir.Join("body").EnsureDir(); err != nil {
		return err
	}
	entry.Metadata.URL = url
	if entry.Metadata.FetchedAt.IsZero() {
		entry.Metadata.FetchedAt = time.Now()
	}
	metaBytes, err := json.MarshalIndent(entry.Metadata, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWrite(dir.Join("body"), entry.Body); err != nil {
		return err
	}
	return atomicWrite(dir.Join("meta.json"), metaBytes)
}

func atomicWrite(dst modpath.AbsolutePath, contents []byte) error {
	tmp := dst.String() + fmt.Sprintf(".tmp-%d", os.Getpid())
	if err := os.WriteFile(tmp, contents, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst.String())
}
