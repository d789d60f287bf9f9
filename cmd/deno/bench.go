package deno

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newBenchCmd builds the "bench" subcommand: it builds the module graph
// of the given files (or "." when none are given) and reports how many
// modules it reached. It does not look for benchmark-named files, does not
// type-check, and does not run the benchmarks themselves (no embedded JS
// engine).
func newBenchCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench [flags] [files...]",
		Short: "Run benchmarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd, flags)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			roots, err := argsToRoots(e.cwd, args)
			if err != nil {
				return err
			}
			result, err := runBuild(e, flags, roots, buildOptions{typeCheck: false, followDynamic: true})
			if err := reportResult(result, err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("prepared %d module(s)", len(result.Graph.Modules)))
			return nil
		},
	}
	return cmd
}
