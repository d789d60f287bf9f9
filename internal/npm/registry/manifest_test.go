package registry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVersionAppliesDistTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "leftpad",
			"dist-tags": {"latest": "1.3.0"},
			"versions": {
				"1.3.0": {"name":"leftpad","version":"1.3.0","dist":{"tarball":"https://example.test/leftpad-1.3.0.tgz","shasum":"abc"}}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	vm, err := c.ResolveVersion("leftpad", "latest")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", vm.Version)
	assert.Equal(t, "https://example.test/leftpad-1.3.0.tgz", vm.Dist.Tarball)
}

func TestResolveVersionUnknownVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"leftpad","dist-tags":{},"versions":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ResolveVersion("leftpad", "9.9.9")
	assert.Error(t, err)
}

func TestEncodePackageNameScopesPreserveSlash(t *testing.T) {
	assert.Equal(t, "@types/node", encodePackageName("@types/node"))
	assert.Equal(t, "leftpad", encodePackageName("leftpad"))
}

func TestDefaultTarballURLUsesBareName(t *testing.T) {
	got := defaultTarballURL("https://registry.npmjs.org", "@types/node", "18.0.0")
	assert.Equal(t, "https://registry.npmjs.org/@types/node/-/node-18.0.0.tgz", got)
}
