package deno

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/denoland/deno-sub011/internal/permissions"
)

// globalFlags holds the persistent flags shared by every subcommand: the
// permission grants, the module-resolution knobs, and the lockfile
// policy. Mirrors the teacher's execOpts/cmdutil.Helper split between a
// small per-invocation struct and flags bound directly onto it.
type globalFlags struct {
	allowRead    []string
	allowWrite   []string
	allowNet     []string
	allowEnv     []string
	allowRun     []string
	allowSys     []string
	allowFfi     []string
	allowAll     bool
	allowScripts bool

	importMap     string
	lockPath      string
	lockWrite     bool
	noLock        bool
	nodeModules   bool
	reload        []string
	cachedOnly    bool
	noNpm         bool
	noRemote      bool
	sloppyImports bool

	denoDir  string
	registry string
	vendor   bool
	quiet    bool
	verbose  bool
	logJSON  bool
}

// addFlags registers every common flag on flags, per spec's §6 CLI surface.
func (f *globalFlags) addFlags(flags *pflag.FlagSet) {
	flags.StringSliceVar(&f.allowRead, "allow-read", nil, "Allow file system read access, optionally restricted to a list of paths")
	flags.StringSliceVar(&f.allowWrite, "allow-write", nil, "Allow file system write access, optionally restricted to a list of paths")
	flags.StringSliceVar(&f.allowNet, "allow-net", nil, "Allow network access, optionally restricted to a list of hosts")
	flags.StringSliceVar(&f.allowEnv, "allow-env", nil, "Allow environment access, optionally restricted to a list of keys")
	flags.StringSliceVar(&f.allowRun, "allow-run", nil, "Allow running subprocesses, optionally restricted to a list of binaries")
	flags.StringSliceVar(&f.allowSys, "allow-sys", nil, "Allow system information access")
	flags.StringSliceVar(&f.allowFfi, "allow-ffi", nil, "Allow loading dynamic libraries")
	for _, name := range []string{"allow-read", "allow-write", "allow-net", "allow-env", "allow-run", "allow-sys", "allow-ffi"} {
		flags.Lookup(name).NoOptDefVal = " "
	}
	flags.BoolVarP(&f.allowAll, "allow-all", "A", false, "Allow all permissions")
	flags.BoolVar(&f.allowScripts, "allow-scripts", false, "Run npm lifecycle scripts for installed packages")

	flags.StringVar(&f.importMap, "import-map", "", "Load import map from a file or URL")
	flags.StringVar(&f.lockPath, "lock", "", "Path to the lockfile")
	flags.BoolVar(&f.lockWrite, "lock-write", false, "Write the lockfile instead of verifying against it")
	flags.BoolVar(&f.noLock, "no-lock", false, "Disable auto discovery of the lockfile")
	flags.BoolVar(&f.nodeModules, "node-modules-dir", false, "Materialize a node_modules directory for npm dependencies")
	flags.StringSliceVar(&f.reload, "reload", nil, "Reload source code cache, optionally restricted to a list of specifiers")
	flags.BoolVar(&f.cachedOnly, "cached-only", false, "Require that remote dependencies are already cached")
	flags.BoolVar(&f.noNpm, "no-npm", false, "Do not resolve npm specifiers")
	flags.BoolVar(&f.noRemote, "no-remote", false, "Do not resolve remote (http/https) specifiers")
	flags.BoolVar(&f.sloppyImports, "unstable-sloppy-imports", false, "Infer extensions on extensionless/directory imports")

	flags.StringVar(&f.denoDir, "deno-dir", "", "Set the cache directory (defaults to $DENO_DIR)")
	flags.StringVar(&f.registry, "registry", "", "npm registry base URL (defaults to $NPM_CONFIG_REGISTRY)")
	flags.BoolVar(&f.vendor, "vendor", false, "Store remote modules under a local ./vendor directory")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "Suppress diagnostic output")
	flags.BoolVar(&f.verbose, "verbose", false, "Log at debug level")
	flags.BoolVar(&f.logJSON, "log-json", false, "Emit logs as JSON")
}

// buildPermissions constructs a Container from the parsed flags:
// -A/--allow-all grants everything unconditionally, each --allow-<kind>
// flag either grants unconditionally (no value) or grants an allowlist
// (comma separated paths/hosts/keys/binaries), and an omitted kind is
// denied.
func (f *globalFlags) buildPermissions() (*permissions.Container, error) {
	grants := map[permissions.Kind][]string{}
	addGrant(grants, permissions.KindRead, f.allowRead)
	addGrant(grants, permissions.KindWrite, f.allowWrite)
	addGrant(grants, permissions.KindNet, f.allowNet)
	addGrant(grants, permissions.KindEnv, f.allowEnv)
	addGrant(grants, permissions.KindRun, f.allowRun)
	addGrant(grants, permissions.KindSys, f.allowSys)
	addGrant(grants, permissions.KindFfi, f.allowFfi)
	return permissions.NewContainer(grants, f.allowAll, permissions.Options{})
}

func addGrant(grants map[permissions.Kind][]string, kind permissions.Kind, values []string) {
	if values == nil {
		return
	}
	// A bare "--allow-read" with no "=value" parses to its NoOptDefVal " ",
	// which the trimming below turns into an empty, non-nil slice; that is
	// this kind's unconditional grant, matching NewContainer's "empty slice
	// means all" convention.
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			cleaned = append(cleaned, v)
		}
	}
	grants[kind] = cleaned
}
