package httpcache

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/permissions"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// File is a fetched module source, independent of which backend produced it.
type File struct {
	Specifier   modpath.Specifier
	LocalPath   string
	Source      []byte
	MediaType   string
	Headers     map[string]string
}

// BlobStore is the in-memory store consulted for blob: specifiers.
type BlobStore interface {
	Get(id string) ([]byte, string, bool)
}

// NpmRedirector resolves an npm: specifier to bytes already materialized by
// the npm cache, without the fetcher needing to know about tarballs.
type NpmRedirector interface {
	ReadModule(specifier modpath.Specifier) (File, error)
}

// JsrResolver turns a jsr: specifier into an http(s) specifier to continue
// fetching through the ordinary HTTP path.
type JsrResolver interface {
	Resolve(specifier modpath.Specifier) (modpath.Specifier, error)
}

// Fetcher multiplexes scheme-specific backends and enforces the permission
// check appropriate to each before touching the network or filesystem.
type Fetcher struct {
	Cache       *Cache
	Perms       *permissions.Container
	HTTPClient  *retryablehttp.Client
	Blobs       BlobStore
	Npm         NpmRedirector
	Jsr         JsrResolver
	Policy      Policy
}

// NewFetcher builds a Fetcher with a retrying HTTP client in the teacher's
// client idiom (bounded retries, retryablehttp's default exponential
// backoff).
func NewFetcher(cache *Cache, perms *permissions.Container) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &Fetcher{Cache: cache, Perms: perms, HTTPClient: client, Policy: PolicyUse}
}

// Fetch resolves specifier through the appropriate backend, checking Net or
// Read permission as appropriate before performing any I/O.
func (f *Fetcher) Fetch(specifier modpath.Specifier, apiName string) (File, error) {
	switch specifier.Scheme() {
	case modpath.SchemeFile:
		return f.fetchFile(specifier, apiName)
	case modpath.SchemeHTTP, modpath.SchemeHTTPS:
		return f.fetchHTTP(specifier, apiName)
	case modpath.SchemeData:
		return f.fetchData(specifier)
	case modpath.SchemeBlob:
		return f.fetchBlob(specifier)
	case modpath.SchemeNpm:
		if f.Npm == nil {
			return File{}, fmt.Errorf("no npm backend configured for %s", specifier)
		}
		return f.Npm.ReadModule(specifier)
	case modpath.SchemeJsr:
		if f.Jsr == nil {
			return File{}, fmt.Errorf("no jsr backend configured for %s", specifier)
		}
		resolved, err := f.Jsr.Resolve(specifier)
		if err != nil {
			return File{}, err
		}
		return f.fetchHTTP(resolved, apiName)
	default:
		return File{}, fmt.Errorf("unsupported specifier scheme %q", specifier.Scheme())
	}
}

func (f *Fetcher) fetchFile(specifier modpath.Specifier, apiName string) (File, error) {
	path := modpath.AbsolutePathFromUpstream(specifier.Path())
	if f.Perms != nil {
		if err := f.Perms.Check(permissions.Descriptor{Kind: permissions.KindRead, Path: path}, apiName); err != nil {
			return File{}, err
		}
	}
	data, err := os.ReadFile(path.String())
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, &moderr.OSError{Kind: "NotFound", Op: "read", Path: path.String(), Err: err}
		}
		return File{}, err
	}
	return File{
		Specifier: specifier,
		LocalPath: path.String(),
		Source:    data,
		MediaType: mediaTypeFromExt(path.Ext()),
	}, nil
}

func (f *Fetcher) fetchHTTP(specifier modpath.Specifier, apiName string) (File, error) {
	if f.Perms != nil {
		if err := f.Perms.Check(permissions.Descriptor{Kind: permissions.KindNet, Host: specifier.Host()}, apiName); err != nil {
			return File{}, err
		}
	}

	rawURL := specifier.String()

	if f.Policy == PolicyOnlyIfCached {
		entry, ok := f.Cache.Get(rawURL)
		if !ok {
			return File{}, &moderr.OSError{Kind: "NotFound", Op: "fetch (only-if-cached)", Path: rawURL}
		}
		return entryToFile(specifier, entry), nil
	}

	if f.Policy == PolicyUse {
		if entry, ok := f.Cache.Get(rawURL); ok {
			return entryToFile(specifier, entry), nil
		}
	}

	req, err := retryablehttp.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return File{}, err
	}

	if f.Policy == PolicyRespectHeaders {
		if entry, ok := f.Cache.Get(rawURL); ok {
			if entry.Metadata.ETag != "" {
				req.Header.Set("If-None-Match", entry.Metadata.ETag)
			}
			if entry.Metadata.LastModified != "" {
				req.Header.Set("If-Modified-Since", entry.Metadata.LastModified)
			}
		}
	}

	var redirectChain []string
	f.HTTPClient.HTTPClient.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		redirectChain = append(redirectChain, r.URL.String())
		if len(via) >= 10 {
			return fmt.Errorf("stopped after 10 redirects")
		}
		return nil
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return File{}, &moderr.OSError{Kind: "ConnectionRefused", Op: "fetch", Path: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if entry, ok := f.Cache.Get(rawURL); ok {
			return entryToFile(specifier, entry), nil
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, err
	}

	meta := Metadata{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		ContentType:  resp.Header.Get("Content-Type"),
		RedirectTo:   redirectChain,
		Headers:      flattenHeaders(resp.Header),
		FetchedAt:    time.Now(),
	}
	entry := Entry{Body: body, Metadata: meta}
	if err := f.Cache.Put(rawURL, entry); err != nil {
		return File{}, err
	}

	return entryToFile(specifier, entry), nil
}

func (f *Fetcher) fetchData(specifier modpath.Specifier) (File, error) {
	// data:[<mediatype>][;base64],<data>
	raw := specifier.String()
	rest := strings.TrimPrefix(raw, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return File{}, fmt.Errorf("malformed data: specifier")
	}
	meta, payload := rest[:comma], rest[comma+1:]
	isBase64 := strings.HasSuffix(meta, ";base64")
	mediaType := strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}
	var body []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return File{}, fmt.Errorf("invalid base64 data: specifier: %w", err)
		}
		body = decoded
	} else {
		unescaped, err := url.QueryUnescape(payload)
		if err != nil {
			return File{}, err
		}
		body = []byte(unescaped)
	}
	return File{Specifier: specifier, Source: body, MediaType: mediaType}, nil
}

func (f *Fetcher) fetchBlob(specifier modpath.Specifier) (File, error) {
	if f.Blobs == nil {
		return File{}, fmt.Errorf("no blob store configured")
	}
	id := specifier.String()
	body, mediaType, ok := f.Blobs.Get(id)
	if !ok {
		return File{}, &moderr.OSError{Kind: "NotFound", Op: "blob lookup", Path: id}
	}
	return File{Specifier: specifier, Source: body, MediaType: mediaType}, nil
}

func entryToFile(specifier modpath.Specifier, entry Entry) File {
	return File{
		Specifier: specifier,
		Source:    entry.Body,
		MediaType: entry.Metadata.ContentType,
		Headers:   entry.Metadata.Headers,
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// mediaTypeFromExt returns a coarse content-type for local files, chosen
// from the extension alone. The module graph stores this value as the
// module's MediaType; modgraph/cjsesm separately decides the module's
// CJS/ESM kind from the extension, package.json type and (optionally)
// content sniffing.
func mediaTypeFromExt(ext string) string {
	switch ext {
	case ".ts", ".mts", ".cts":
		return "application/typescript"
	case ".tsx":
		return "text/tsx"
	case ".jsx":
		return "text/jsx"
	case ".json":
		return "application/json"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/javascript"
	}
}
