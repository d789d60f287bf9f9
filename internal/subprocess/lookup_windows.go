//go:build windows
// +build windows

package subprocess

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// batchExtensions are the extensions that must be invoked through a shell
// rather than exec'd directly, since they have no PE header of their own.
var batchExtensions = map[string]bool{".bat": true, ".cmd": true}

// executableExtensions is the trial order used when command has no
// extension of its own, matching cmd.exe's default PATHEXT-less fallback
// (spec's "`.com`/`.exe` suffix trial").
var executableExtensions = []string{"", ".com", ".exe", ".bat", ".cmd"}

// lookupExecutable implements spec.md §4.12's Windows executable lookup
// order: a command containing a path separator is used as-is (no PATH
// search, matching NeedCurrentDirectoryForExePathW's separator-passthrough
// rule); otherwise each PATH entry (its surrounding quotes stripped, since
// Windows PATH entries may be quoted to embed a semicolon) is tried with
// each of executableExtensions appended in turn.
func lookupExecutable(command string) (string, error) {
	if strings.ContainsAny(command, `/\`) {
		return tryExtensions(command)
	}
	if resolved, err := tryExtensions(command); err == nil {
		return resolved, nil
	}
	pathVal := os.Getenv("PATH")
	for _, rawDir := range strings.Split(pathVal, string(os.PathListSeparator)) {
		dir := strings.Trim(strings.TrimSpace(rawDir), `"`)
		if dir == "" {
			continue
		}
		if resolved, err := tryExtensions(filepath.Join(dir, command)); err == nil {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("subprocess: %q not found on PATH", command)
}

func tryExtensions(base string) (string, error) {
	ext := filepath.Ext(base)
	if ext != "" {
		if fileExists(base) {
			return base, nil
		}
		return "", fmt.Errorf("subprocess: %q not found", base)
	}
	for _, candidate := range executableExtensions {
		if candidate == "" {
			continue
		}
		full := base + candidate
		if fileExists(full) {
			return full, nil
		}
	}
	return "", fmt.Errorf("subprocess: %q not found", base)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// buildCommand wires resolved+args into an *exec.Cmd, routing through
// "cmd.exe /e:ON /v:OFF /d /c" when resolved is a batch file — matching
// Node's child_process.spawn behavior, since batch files have no PE header
// CreateProcessW can execute directly. /e:ON enables command extensions,
// while /v:OFF and /d disable delayed expansion and autorun scripts that
// could otherwise let one script's output reinterpret the next argument.
func buildCommand(resolved string, args []string) *exec.Cmd {
	if !batchExtensions[strings.ToLower(filepath.Ext(resolved))] {
		argv := append([]string{resolved}, args...)
		cmd := exec.Command(resolved, args...)
		cmd.SysProcAttr = windowsCmdLine(joinArgsWindows(argv))
		return cmd
	}

	batchArgs := make([]string, len(args))
	for i, a := range args {
		batchArgs[i] = neutralizeForBatch(a)
	}
	cmdLine := resolved + " " + strings.Join(batchArgs, " ")
	cmd := exec.Command("cmd.exe", "/e:ON", "/v:OFF", "/d", "/c", cmdLine)
	return cmd
}
