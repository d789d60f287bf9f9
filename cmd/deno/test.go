package deno

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/denoland/deno-sub011/internal/modpath"
)

var testFilePattern = []string{"_test.ts", "_test.js", ".test.ts", ".test.js", "test.ts", "test.js"}

// newTestCmd builds the "test" subcommand: discover test files under the
// given root (or cwd) by the conventional naming pattern, build each
// one's graph, and report what would run. Actual test execution needs a
// JS engine this runtime doesn't embed (see run.go's doc comment); this
// stops at the build, plus a type-check when --check is given.
func newTestCmd(flags *globalFlags) *cobra.Command {
	var typeCheck bool
	cmd := &cobra.Command{
		Use:   "test [flags] [files...]",
		Short: "Run tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd, flags)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			files, err := discoverTestFiles(e.cwd, args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("no test files found"))
				return nil
			}
			result, err := runBuild(e, flags, files, buildOptions{typeCheck: typeCheck, followDynamic: true})
			if err := reportResult(result, err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("prepared %d test file(s)", len(files)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&typeCheck, "check", false, "Type-check test files before running")
	return cmd
}

func discoverTestFiles(cwd modpath.AbsolutePath, args []string) ([]modpath.Specifier, error) {
	var roots []modpath.Specifier
	for _, arg := range args {
		spec, err := argToSpecifier(cwd, arg)
		if err != nil {
			return nil, err
		}
		if spec.Scheme() != modpath.SchemeFile {
			roots = append(roots, spec)
			continue
		}
		path := spec.Path()
		if !modpath.AbsolutePathFromUpstream(path).IsDir() {
			roots = append(roots, spec)
			continue
		}
		matches, err := walkForTestFiles(path)
		if err != nil {
			return nil, err
		}
		roots = append(roots, matches...)
	}
	return roots, nil
}

func walkForTestFiles(dir string) ([]modpath.Specifier, error) {
	var found []modpath.Specifier
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "node_modules" || strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isTestFile(path) {
			found = append(found, modpath.FromFilePath(modpath.AbsolutePathFromUpstream(path)))
		}
		return nil
	})
	return found, err
}

func isTestFile(path string) bool {
	for _, suffix := range testFilePattern {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
