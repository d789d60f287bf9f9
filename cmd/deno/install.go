package deno

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/denoland/deno-sub011/internal/lockfile"
	"github.com/denoland/deno-sub011/internal/materializer"
	"github.com/denoland/deno-sub011/internal/npm/lockfileconv"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

const defaultLockfileName = "deno.lock"

// newInstallCmd builds the "install" subcommand: resolve package.json's
// dependencies (preferring the existing lockfile's selections when
// present), materialize node_modules, run lifecycle scripts where
// approved, and write the lockfile back out.
func newInstallCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the dependencies listed in package.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd, flags)
			if err != nil {
				return err
			}
			result, err := runInstall(e, flags, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("installed %d package folder(s)", result.FolderCount))
			return nil
		},
	}
	return cmd
}

// runInstall resolves package.json's own dependencies together with
// extraReqs, materializes node_modules, and updates the lockfile. Shared
// by "install" and "add", which differ only in the extra requirements they
// pass.
func runInstall(e *env, flags *globalFlags, extraReqs []resolver.PackageReq) (*materializer.Result, error) {
	manifest, err := readProjectManifest(e.cwd)
	if err != nil {
		return nil, err
	}
	reqs := mergeReqs(manifest.packageReqs(), extraReqs)

	lockPath := lockfilePath(e, flags)
	var start *resolver.NpmResolutionSnapshot
	if !flags.noLock && !flags.lockWrite {
		if prior, err := readLockfile(lockPath); err == nil && prior != nil {
			start, err = lockfileconv.SnapshotFromLockfile(prior)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", lockPath, err)
			}
		}
	}

	snap, diagnostics, err := e.npmResolver.Resolve(reqs, start)
	if err != nil {
		return nil, err
	}
	for _, d := range diagnostics {
		e.logger.Warn("npm resolution", "detail", d.Detail)
	}

	if err := materializeSnapshot(e, snap); err != nil {
		return nil, err
	}

	result, err := materializer.Materialize(materializer.Options{
		ProjectRoot:  e.cwd,
		Snapshot:     snap,
		RegistryHost: e.registryHost,
		Cache:        e.npmCache,
		RunScripts:   e.lifecycle.MaterializerHook(),
		Logger:       e.logger,
	})
	if err != nil {
		return nil, err
	}

	if !flags.noLock {
		if err := writeLockfile(lockPath, snap); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func mergeReqs(base []resolver.PackageReq, extra []resolver.PackageReq) []resolver.PackageReq {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base))
	for _, r := range base {
		seen[r.Name] = true
	}
	out := append([]resolver.PackageReq(nil), base...)
	for _, r := range extra {
		if seen[r.Name] {
			continue
		}
		out = append(out, r)
		seen[r.Name] = true
	}
	return out
}

func lockfilePath(e *env, flags *globalFlags) string {
	if flags.lockPath != "" {
		return flags.lockPath
	}
	return e.cwd.Join(defaultLockfileName).String()
}

func readLockfile(path string) (*lockfile.NpmLockfile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return lockfile.DecodeNpmLockfile(b)
}

func writeLockfile(path string, snap *resolver.NpmResolutionSnapshot) error {
	l := lockfileconv.LockfileFromSnapshot(snap)
	var buf bytes.Buffer
	if err := l.Encode(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
