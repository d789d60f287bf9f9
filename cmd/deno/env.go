// Package deno holds the root cobra command and the command set that
// compose the runtime's subsystems (permissions, httpcache, npm
// resolution, materialization, lifecycle scripts, module graph
// preparation, and the op table) into the `deno` CLI surface.
package deno

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/go-homedir"

	"github.com/denoland/deno-sub011/internal/httpcache"
	"github.com/denoland/deno-sub011/internal/lifecycle"
	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/npm/npmcache"
	"github.com/denoland/deno-sub011/internal/npm/registry"
	"github.com/denoland/deno-sub011/internal/npm/resolver"
	"github.com/denoland/deno-sub011/internal/npm/service"
	"github.com/denoland/deno-sub011/internal/ops"
	"github.com/denoland/deno-sub011/internal/permissions"
)

// env is the composition root every subcommand builds from its flags: the
// shared caches, the permission container, and the op table a worker
// would dispatch against. It is assembled fresh per invocation, the way
// the teacher's cmdutil.Helper is built fresh per RunWithArgs call.
type env struct {
	denoDir      modpath.AbsolutePath
	cwd          modpath.AbsolutePath
	logger       hclog.Logger
	perms        *permissions.Container
	httpCache    *httpcache.Cache
	fetcher      *httpcache.Fetcher
	npmCache     *npmcache.Cache
	registry     *registry.Client
	npmFetcher   *service.RegistryFetcher
	npmResolver  *resolver.Resolver
	lifecycle    *lifecycle.Runner
	opTable      *ops.Table
	registryHost string
}

// newEnv resolves DENO_DIR, NPM_CONFIG_REGISTRY and the process's cwd, and
// wires every shared subsystem against them. perms is built separately,
// from the permission flags, since every command needs a different grant
// set.
func newEnv(f *globalFlags, perms *permissions.Container) (*env, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "deno",
		Level:      logLevel(f),
		Output:     os.Stderr,
		JSONFormat: f.logJSON,
	})

	denoDir, err := resolveDenoDir(f.denoDir)
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	registryHost := os.Getenv("NPM_CONFIG_REGISTRY")
	if f.registry != "" {
		registryHost = f.registry
	}

	var vendorDir *modpath.AbsolutePath
	if f.vendor {
		v := modpath.AbsolutePathFromUpstream(cwd).Join("vendor")
		vendorDir = &v
	}

	httpCache := httpcache.New(denoDir, vendorDir)
	fetcher := httpcache.NewFetcher(httpCache, perms)
	switch {
	case f.cachedOnly, f.noRemote:
		// --no-remote refuses to hit the network for remote specifiers,
		// the same cache-only behavior --cached-only requests.
		fetcher.Policy = httpcache.PolicyOnlyIfCached
	case len(f.reload) > 0:
		fetcher.Policy = httpcache.PolicyReload
	}
	npmCache := npmcache.New(denoDir.Join("npm"))
	client := registry.NewClient(registryHost)
	npmFetcher := service.NewRegistryFetcher(client)
	npmResolver := resolver.NewResolver(npmFetcher)

	var approver lifecycle.Approver
	if f.allowScripts {
		approver = func(string) bool { return true }
	}
	runner := lifecycle.NewRunner(denoDir, approver, map[string]string{"registry": registryHost}, logger.Named("lifecycle"))

	table := ops.NewTable()
	ops.RegisterBuiltins(table)

	return &env{
		denoDir:      denoDir,
		cwd:          modpath.AbsolutePathFromUpstream(cwd),
		logger:       logger,
		perms:        perms,
		httpCache:    httpCache,
		fetcher:      fetcher,
		npmCache:     npmCache,
		registry:     client,
		npmFetcher:   npmFetcher,
		npmResolver:  npmResolver,
		lifecycle:    runner,
		opTable:      table,
		registryHost: registryHost,
	}, nil
}

func logLevel(f *globalFlags) hclog.Level {
	if f.quiet {
		return hclog.Error
	}
	if f.verbose {
		return hclog.Debug
	}
	return hclog.Info
}

// resolveDenoDir implements the DENO_DIR override chain: explicit flag,
// then the DENO_DIR environment variable, then the XDG cache home, then
// the user's home directory as a last resort.
func resolveDenoDir(flagValue string) (modpath.AbsolutePath, error) {
	if flagValue != "" {
		return modpath.NewAbsolutePath(flagValue)
	}
	if envValue := os.Getenv("DENO_DIR"); envValue != "" {
		return modpath.NewAbsolutePath(envValue)
	}
	if xdg.CacheHome != "" {
		return modpath.NewAbsolutePath(filepath.Join(xdg.CacheHome, "deno"))
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving DENO_DIR: %w", err)
	}
	return modpath.NewAbsolutePath(filepath.Join(home, ".deno"))
}
