package deno

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/denoland/deno-sub011/internal/moderr"
	"github.com/denoland/deno-sub011/internal/signals"
)

type watcherKey struct{}

// watcherFromCmd retrieves the signal watcher a subcommand's RunE should
// register cleanup against (e.g. flushing lifecycle-script warnings
// before the process exits on SIGINT).
func watcherFromCmd(cmd *cobra.Command) *signals.Watcher {
	w, _ := cmd.Context().Value(watcherKey{}).(*signals.Watcher)
	return w
}

const defaultSubcommand = "run"

// RunWithArgs runs the deno CLI with the given arguments, which should not
// include the binary name itself. It returns the process exit code: 0 on
// success, the code an ExitCoder error names otherwise, 1 for any other
// error.
func RunWithArgs(args []string, version string) int {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	signalWatcher := signals.NewWatcher()
	root := newRootCmd(version)
	root.SetContext(context.WithValue(context.Background(), watcherKey{}, signalWatcher))
	root.SetArgs(resolveArgs(root, args))

	doneCh := make(chan struct{})
	var execErr error
	go func() {
		execErr = root.Execute()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		signalWatcher.Close()
		return exitCodeFor(execErr)
	case <-signalWatcher.Done():
		return 1
	}
}

// exitCodeFor maps a command error to a process exit code: nil is 0, an
// moderr.ExitCoder reports its own code, anything else is the generic 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var exitCoder moderr.ExitCoder
	if errors.As(err, &exitCoder) {
		return exitCoder.ExitCode()
	}
	fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
	return 1
}

// resolveArgs prepends the default subcommand when args don't already
// resolve to a known subcommand, --help, or --version, matching the
// teacher's "bare invocation means run" ergonomics.
func resolveArgs(root *cobra.Command, args []string) []string {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" || arg == "--version" || arg == "completion" {
			return args
		}
	}
	cmd, _, err := root.Traverse(args)
	if err != nil {
		return args
	} else if cmd.Name() == root.Name() {
		return append([]string{defaultSubcommand}, args...)
	}
	return args
}

// newRootCmd assembles the root cobra command and every subcommand,
// sharing one globalFlags struct bound onto the root's persistent flags.
func newRootCmd(version string) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:              "deno",
		Short:            "A secure runtime for JavaScript and TypeScript",
		Version:          version,
		TraverseChildren: true,
		SilenceUsage:     true,
		SilenceErrors:    true,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	flags.addFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newCacheCmd(flags))
	root.AddCommand(newCheckCmd(flags))
	root.AddCommand(newTestCmd(flags))
	root.AddCommand(newBenchCmd(flags))
	root.AddCommand(newCompileCmd(flags))
	root.AddCommand(newInstallCmd(flags))
	root.AddCommand(newAddCmd(flags))
	return root
}
