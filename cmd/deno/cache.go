package deno

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newCacheCmd builds the "cache" subcommand: fetch and type-check every
// given specifier's dependency graph without preparing it to run.
func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache <specifiers...>",
		Short: "Cache the dependencies",
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
			result, err := runBuild(e, flags, roots, buildOptions{typeCheck: false, followDynamic: false})
			if err := reportResult(result, err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("cached %d module(s)", len(result.Graph.Modules)))
			return nil
		},
	}
	return cmd
}
