//go:build !windows
// +build !windows

package subprocess

/**
 * Code in this file is based on the source code at
 * https://github.com/hashicorp/consul-template/tree/3ea7d99ad8eff17897e0d63dac86d74770170bb8/child/sys_nix.go
 */

import (
	"os"
	"os/exec"
	"syscall"
)

func setSetpgid(cmd *exec.Cmd, value bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: value}
}

func processNotFoundErr(err error) bool {
	// ESRCH == no such process, ie. already exited
	return err == syscall.ESRCH
}

// platformSignal delivers sig to the process (or, if setpgid is set, to its
// whole process group via the negative-pid convention) using the target
// platform's native signal facility directly — no emulation needed on Unix.
func platformSignal(cmd *exec.Cmd, pid int, setpgid bool, sig syscall.Signal) error {
	target := pid
	if setpgid {
		target = -pid
	}
	p, err := os.FindProcess(target)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}
