package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// MaterializerHook adapts Runner into the callback shape
// materializer.Options.RunScripts expects: given a resolved package and the
// directory it was materialized into, load its package.json "scripts"
// field and run it.
func (r *Runner) MaterializerHook() func(pkg resolver.NpmResolutionPackage, pkgDir modpath.AbsolutePath, binDirs []string) error {
	return func(pkg resolver.NpmResolutionPackage, pkgDir modpath.AbsolutePath, binDirs []string) error {
		scripts, err := readScripts(pkgDir.String())
		if err != nil {
			return err
		}
		return r.Run(PackageScripts{Name: pkg.ID.Nv.Name, Dir: pkgDir.String(), Scripts: scripts}, binDirs)
	}
}

func readScripts(pkgDir string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(b, &manifest); err != nil {
		return nil, err
	}
	return manifest.Scripts, nil
}
