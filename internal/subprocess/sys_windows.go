//go:build windows
// +build windows

package subprocess

/**
 * Code in this file is based on the source code at
 * https://github.com/hashicorp/consul-template/tree/3ea7d99ad8eff17897e0d63dac86d74770170bb8/child/sys_windows.go
 *
 * Extended with the signal emulation spec.md §4.12 requires: Windows has no
 * native signal delivery, so SIGKILL/SIGTERM/SIGINT/SIGQUIT are all mapped
 * onto TerminateProcess, with SIGQUIT additionally attempting a best-effort
 * minidump write before terminating (matching what a Unix SIGQUIT handler
 * would leave behind). Signal(0) is the portable liveness probe and is
 * implemented as an OpenProcess call that is never itself fatal.
 */

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/windows"
)

func setSetpgid(cmd *exec.Cmd, value bool) {
	// Windows has no process-group-via-setpgid concept that maps onto
	// POSIX semantics; job objects (jobobject_windows.go) are used instead
	// for "kill this process and everything it spawned".
}

func processNotFoundErr(err error) bool {
	return err == windows.ERROR_INVALID_PARAMETER || err == syscall.ESRCH
}

// platformSignal emulates the requested signal: sig 0 is a liveness probe,
// SIGQUIT additionally attempts a minidump before terminating, and every
// other signal (SIGKILL/SIGTERM/SIGINT/...) is mapped to TerminateProcess —
// Windows processes have no graceful-vs-forceful distinction to preserve.
func platformSignal(cmd *exec.Cmd, pid int, setpgid bool, sig syscall.Signal) error {
	if sig == 0 {
		h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
		if err != nil {
			return err
		}
		defer windows.CloseHandle(h)
		var code uint32
		if err := windows.GetExitCodeProcess(h, &code); err != nil {
			return err
		}
		const stillActive = 259 // STILL_ACTIVE, per GetExitCodeProcess's documented sentinel
		if code != stillActive {
			return fmt.Errorf("process %d has already exited", pid)
		}
		return nil
	}

	if sig == syscall.SIGQUIT {
		// Best-effort: a failed minidump write must never block delivering
		// the termination signal itself. Its error is discarded: it is
		// neither returned to the caller nor logged.
		_ = writeMinidump(pid)
	}

	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}

// writeMinidump attempts a best-effort process dump via DbgHelp's
// MiniDumpWriteDump, mirroring what an unhandled SIGQUIT produces on Unix.
// Failures are swallowed by the caller; see platformSignal.
func writeMinidump(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	dbghelp := windows.NewLazySystemDLL("dbghelp.dll")
	writeDump := dbghelp.NewProc("MiniDumpWriteDump")
	if err := writeDump.Find(); err != nil {
		return err
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("deno-%d.dmp", pid))
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	f, err := windows.CreateFile(pathPtr, windows.GENERIC_WRITE, 0, nil, windows.CREATE_ALWAYS, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(f)

	const miniDumpNormal = 0x00000000
	ret, _, callErr := writeDump.Call(
		uintptr(h),
		uintptr(pid),
		uintptr(f),
		uintptr(miniDumpNormal),
		0, 0, 0,
	)
	if ret == 0 {
		return callErr
	}
	return nil
}
