package deno

import (
	"bufio"
	"io"
	"regexp"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/denoland/deno-sub011/internal/modgraph"
	"github.com/denoland/deno-sub011/internal/modgraph/prepare"
	"github.com/denoland/deno-sub011/internal/subprocess"
)

// tscChecker implements prepare.TypeChecker by shelling out to an
// external "tsc" binary on PATH, the way deno_graph's own consumers hand
// the fast-check subgraph to a separately-vendored compiler rather than
// embedding one. When tsc isn't available this runtime has nothing to
// check against, so Check logs once and reports no diagnostics rather
// than failing every build that doesn't have TypeScript installed.
type tscChecker struct {
	logger hclog.Logger
}

var tscDiagnostic = regexp.MustCompile(`^(.+)\((\d+),(\d+)\): error (TS\d+): (.+)$`)

func (c *tscChecker) Check(files map[string]*modgraph.Module) ([]prepare.Diagnostic, error) {
	if len(files) == 0 {
		return nil, nil
	}

	args := make([]string, 0, len(files)+3)
	args = append(args, "--noEmit", "--allowJs", "--checkJs", "--pretty", "false")
	for _, module := range files {
		if module.Specifier.Scheme() != "file" {
			continue
		}
		args = append(args, module.Specifier.Path())
	}

	proc, err := subprocess.Spawn(subprocess.SpawnOptions{
		Command: "tsc",
		Args:    args,
		Stdout:  subprocess.StdioPiped,
		Stderr:  subprocess.StdioNull,
		Logger:  c.logger,
	})
	if err != nil {
		c.logger.Debug("tsc not available, skipping type-check", "error", err)
		return nil, nil
	}
	defer proc.Kill()

	diagnostics := parseTscOutput(proc.Stdout())
	if _, err := proc.Wait(); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func parseTscOutput(r io.Reader) []prepare.Diagnostic {
	if r == nil {
		return nil
	}
	var diagnostics []prepare.Diagnostic
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := tscDiagnostic.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		column, _ := strconv.Atoi(m[3])
		diagnostics = append(diagnostics, prepare.Diagnostic{
			File:    m[1],
			Line:    line,
			Column:  column,
			Message: m[4] + ": " + m[5],
		})
	}
	return diagnostics
}
