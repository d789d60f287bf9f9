package deno

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newRunCmd builds the "run" subcommand: build the module graph rooted at
// the given specifier, optionally type-check it, transpile every module
// it reaches, and report. This runtime has no embedded JavaScript engine
// (see DESIGN.md's open questions), so "running" a program means
// validating and preparing it exactly as a real run would before handing
// control to V8 — the boundary this CLI stops at.
func newRunCmd(flags *globalFlags) *cobra.Command {
	var typeCheck bool
	cmd := &cobra.Command{
		Use:   "run [flags] <specifier> [args...]",
		Short: "Run a JavaScript or TypeScript program",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd, flags)
			if err != nil {
				return err
			}
			roots, err := argsToRoots(e.cwd, args[:1])
			if err != nil {
				return err
			}
			result, err := runBuild(e, flags, roots, buildOptions{typeCheck: typeCheck, followDynamic: true})
			if err := reportResult(result, err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("prepared %d module(s) from %s", len(result.Emitted), roots[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&typeCheck, "check", false, "Type-check before running")
	return cmd
}
