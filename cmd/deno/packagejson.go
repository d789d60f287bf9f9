package deno

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/denoland/deno-sub011/internal/modgraph"
	"github.com/denoland/deno-sub011/internal/modgraph/cjsesm"
	"github.com/denoland/deno-sub011/internal/modpath"
)

// pkgJSONCache memoizes the nearest-package.json walk by directory, since
// a graph with many modules under the same package should only pay for
// one read.
var pkgJSONCache sync.Map // map[string]modgraph.PackageJSON

// readNearestPackageJSON walks up from dirOfModule's directory looking
// for the nearest package.json, the way Node's own module resolution
// does, and reports its "name" and "type" fields. A module with no
// package.json above it (or a remote/non-file specifier) gets an empty
// type, so its kind comes from its extension and, where that is
// ambiguous, the CommonJS heuristic, with ESM as the fallback.
func readNearestPackageJSON(dirOfModule modpath.Specifier) (modgraph.PackageJSON, error) {
	if dirOfModule.Scheme() != modpath.SchemeFile {
		return modgraph.PackageJSON{}, nil
	}
	dir := dirOfModule.Path()
	for {
		if cached, ok := pkgJSONCache.Load(dir); ok {
			return cached.(modgraph.PackageJSON), nil
		}
		candidate := dir + "/package.json"
		if b, err := os.ReadFile(candidate); err == nil {
			var manifest struct {
				Name string `json:"name"`
				Type string `json:"type"`
			}
			pj := modgraph.PackageJSON{}
			if json.Unmarshal(b, &manifest) == nil {
				pj.Name = manifest.Name
				pj.Type = cjsesm.PackageType(manifest.Type)
			}
			pkgJSONCache.Store(dir, pj)
			return pj, nil
		}
		parent := dir[:strings.LastIndex(dir, "/")]
		if parent == dir || parent == "" {
			return modgraph.PackageJSON{}, nil
		}
		dir = parent
	}
}
