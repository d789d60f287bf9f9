package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/denoland/deno-sub011/internal/npm/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFetcherAdaptsManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(registry.Packument{
			Name:     "left-pad",
			DistTags: map[string]string{"latest": "1.3.0"},
			Versions: map[string]registry.VersionManifest{
				"1.3.0": {
					Name:    "left-pad",
					Version: "1.3.0",
					Dependencies: map[string]string{
						"pad-utils": "^1.0.0",
					},
					Dist: struct {
						Tarball   string `json:"tarball"`
						Shasum    string `json:"shasum"`
						Integrity string `json:"integrity"`
					}{Tarball: "https://example.com/left-pad-1.3.0.tgz"},
				},
			},
		})
	}))
	defer srv.Close()

	fetcher := NewRegistryFetcher(registry.NewClient(srv.URL))
	versions, err := fetcher.AvailableVersions("left-pad")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.3.0"}, versions)

	manifest, err := fetcher.Manifest("left-pad", "1.3.0")
	require.NoError(t, err)
	assert.Equal(t, "^1.0.0", manifest.Dependencies["pad-utils"])
	assert.Equal(t, "https://example.com/left-pad-1.3.0.tgz", manifest.Dist.Tarball)
}
