package deno

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/denoland/deno-sub011/internal/npm/resolver"
)

// newAddCmd builds the "add" subcommand: add one or more npm packages to
// package.json's dependencies, then run the same resolve+materialize
// pipeline as "install".
func newAddCmd(flags *globalFlags) *cobra.Command {
	var dev bool
	cmd := &cobra.Command{
		Use:   "add <package[@version]...>",
		Short: "Add npm dependencies to package.json",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd, flags)
			if err != nil {
				return err
			}
			reqs := make([]resolver.PackageReq, 0, len(args))
			for _, arg := range args {
				reqs = append(reqs, parseAddArg(arg))
			}
			if err := addToManifest(e.cwd.Join("package.json").String(), reqs, dev); err != nil {
				return err
			}
			result, err := runInstall(e, flags, reqs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("added %d package(s), %d folder(s) installed", len(reqs), result.FolderCount))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dev, "dev", "D", false, "Add as a devDependency")
	return cmd
}

// parseAddArg splits "name@range" (scoped-name aware) into a requirement,
// defaulting to the "latest" dist-tag when no range is given.
func parseAddArg(arg string) resolver.PackageReq {
	name := arg
	versionReq := "latest"
	searchFrom := 0
	if strings.HasPrefix(arg, "@") {
		searchFrom = 1
	}
	if at := strings.Index(arg[searchFrom:], "@"); at >= 0 {
		idx := searchFrom + at
		name = arg[:idx]
		versionReq = arg[idx+1:]
	}
	return resolver.PackageReq{Name: name, VersionReq: versionReq}
}

func addToManifest(path string, reqs []resolver.PackageReq, dev bool) error {
	raw := map[string]json.RawMessage{}
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	field := "dependencies"
	if dev {
		field = "devDependencies"
	}
	deps := map[string]string{}
	if existing, ok := raw[field]; ok {
		if err := json.Unmarshal(existing, &deps); err != nil {
			return fmt.Errorf("parsing %s.%s: %w", path, field, err)
		}
	}
	for _, r := range reqs {
		deps[r.Name] = r.VersionReq
	}
	encodedDeps, err := json.Marshal(deps)
	if err != nil {
		return err
	}
	raw[field] = encodedDeps

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}
