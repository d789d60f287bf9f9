package deno

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newCheckCmd builds the "check" subcommand: build and type-check the
// graph without transpiling or running anything.
func newCheckCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <specifiers...>",
		Short: "Type-check a program without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd, flags)
			if err != nil {
				return err
			}
			roots, err := argsToRoots(e.cwd, args)
			if err != nil {
				return err
			}
			result, err := runBuild(e, flags, roots, buildOptions{typeCheck: true, followDynamic: false})
			if err := reportResult(result, err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("no type errors in %d module(s)", len(result.Graph.Modules)))
			return nil
		},
	}
	return cmd
}
