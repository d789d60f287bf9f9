//go:build !windows
// +build !windows

package subprocess

import "os/exec"

// lookupExecutable resolves command via the standard PATH search
// (exec.LookPath), returning command unchanged if it already contains a
// directory separator (so relative/absolute paths bypass PATH, matching
// Windows' own separator-passthrough rule in lookup_windows.go).
func lookupExecutable(command string) (string, error) {
	return exec.LookPath(command)
}

func buildCommand(resolved string, args []string) *exec.Cmd {
	return exec.Command(resolved, args...)
}

func addToJob(cmd *exec.Cmd) error { return nil }
