// Package lifecycle runs npm package lifecycle scripts (preinstall, install,
// postinstall) once a package's folder has been materialized (the
// materializer calls it per package in sorted folder-id order, not in
// dependency order), gating execution on user approval and marking
// completion so a re-run doesn't repeat work.
package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/denoland/deno-sub011/internal/modpath"
)

const (
	scriptsWarnedFile = ".scripts-warned"
	scriptsRunFile    = ".scripts-run"
)

var scriptNames = []string{"preinstall", "install", "postinstall"}

// Approver decides whether a package's scripts may run. A nil Approver
// denies everything (the "--ignore-scripts" / default-deny posture).
type Approver func(packageName string) bool

// Runner executes lifecycle scripts for packages flagged has_scripts,
// accumulating warnings for packages denied approval.
type Runner struct {
	DenoDir  modpath.AbsolutePath // root for .scripts-warned/.scripts-run markers
	Approve  Approver
	Config   map[string]string // npm_config_* values, without the prefix
	Logger   hclog.Logger

	mu       sync.Mutex
	warned   []string
}

// NewRunner constructs a Runner. A nil logger defaults to discarding output.
func NewRunner(denoDir modpath.AbsolutePath, approve Approver, config map[string]string, logger hclog.Logger) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runner{DenoDir: denoDir, Approve: approve, Config: config, Logger: logger}
}

// PackageScripts describes the lifecycle scripts available for one package,
// as read from its package.json "scripts" field.
type PackageScripts struct {
	Name    string
	Dir     string            // package directory, used as cwd
	Scripts map[string]string // script name -> shell command
}

// Run executes pkg's preinstall/install/postinstall scripts, in that order,
// with binDirs prepended to PATH (each dependency's own .bin directory, so
// a script can invoke a sibling dependency's CLI). It returns early,
// without error, if the package was already run to completion, and returns
// early, recording a warning, if approval is withheld.
func (r *Runner) Run(pkg PackageScripts, binDirs []string) error {
	if r.alreadyRun(pkg.Name) {
		return nil
	}
	if r.Approve == nil || !r.Approve(pkg.Name) {
		r.recordWarning(pkg.Name)
		return nil
	}

	env := scriptEnv(binDirs, r.Config)
	for _, name := range scriptNames {
		cmdLine, ok := pkg.Scripts[name]
		if !ok || strings.TrimSpace(cmdLine) == "" {
			continue
		}
		r.Logger.Debug("running lifecycle script", "package", pkg.Name, "script", name)
		if err := runScript(pkg.Dir, cmdLine, env); err != nil {
			return fmt.Errorf("lifecycle: %s failed for %s: %w", name, pkg.Name, err)
		}
	}
	return r.markRun(pkg.Name)
}

// Warnings returns every package name whose scripts were skipped for lack
// of approval, in the order first encountered.
func (r *Runner) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warned...)
}

// FlushWarnings writes the accumulated warning list to .scripts-warned so a
// subsequent run in the same project doesn't repeat the warning, returning
// the formatted warning message (empty if nothing was skipped, or if the
// file already recorded this exact set).
func (r *Runner) FlushWarnings() (string, error) {
	r.mu.Lock()
	warned := append([]string(nil), r.warned...)
	r.mu.Unlock()
	if len(warned) == 0 {
		return "", nil
	}
	sort.Strings(warned)
	marker := r.DenoDir.Join(scriptsWarnedFile)
	if prev, err := os.ReadFile(marker.String()); err == nil {
		if string(prev) == strings.Join(warned, "\n") {
			return "", nil
		}
	}
	if err := os.WriteFile(marker.String(), []byte(strings.Join(warned, "\n")), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("ignored scripts for %d package(s) pending approval: %s", len(warned), strings.Join(warned, ", ")), nil
}

func (r *Runner) recordWarning(name string) {
	r.mu.Lock()
	r.warned = append(r.warned, name)
	r.mu.Unlock()
}

func (r *Runner) markerPath(pkgName string) modpath.AbsolutePath {
	return r.DenoDir.Join(scriptsRunFile + "." + sanitize(pkgName))
}

func (r *Runner) alreadyRun(pkgName string) bool {
	return r.markerPath(pkgName).Exists()
}

func (r *Runner) markRun(pkgName string) error {
	marker := r.markerPath(pkgName)
	if err := marker.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(marker.String(), nil, 0o644)
}

func sanitize(name string) string {
	return strings.NewReplacer("/", "_", "@", "_").Replace(name)
}

func scriptEnv(binDirs []string, config map[string]string) []string {
	env := os.Environ()
	if len(binDirs) > 0 {
		pathVar := "PATH"
		sep := string(os.PathListSeparator)
		prefix := strings.Join(binDirs, sep)
		for i, kv := range env {
			if strings.HasPrefix(kv, "PATH=") || strings.HasPrefix(kv, "Path=") {
				env[i] = "PATH=" + prefix + sep + kv[len("PATH="):]
				pathVar = ""
				break
			}
		}
		if pathVar != "" {
			env = append(env, "PATH="+prefix)
		}
	}
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, "npm_config_"+k+"="+config[k])
	}
	return env
}

// runScript invokes cmdLine through the platform shell, matching npm's own
// "run scripts via sh -c / cmd /c" behavior.
func runScript(dir, cmdLine string, env []string) error {
	cmd := shellCommand(cmdLine)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func shellCommand(cmdLine string) *exec.Cmd {
	if filepath.Separator == '\\' {
		return exec.Command("cmd", "/C", cmdLine)
	}
	return exec.Command("sh", "-c", cmdLine)
}
