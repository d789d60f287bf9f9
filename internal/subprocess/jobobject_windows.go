//go:build windows
// +build windows

package subprocess

import (
	"os/exec"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

func windowsCmdLine(cmdLine string) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CmdLine: cmdLine}
}

var (
	jobOnce   sync.Once
	jobHandle windows.Handle
	jobErr    error
)

// processJob lazily creates the process-wide job object every spawned
// child is assigned to, so killing this process (or the job itself)
// terminates every descendant it spawned — the Windows equivalent of a
// Unix process group kill. JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE ties the
// children's lifetime to the job handle; JOB_OBJECT_LIMIT_DIE_ON_UNHANDLED_EXCEPTION
// stops one crashing child from being silently ignored;
// JOB_OBJECT_LIMIT_BREAKAWAY_OK / JOB_OBJECT_LIMIT_SILENT_BREAKAWAY_OK let a
// child that explicitly needs to outlive the job (a detached daemon) do so
// rather than failing to start.
func processJob() (windows.Handle, error) {
	jobOnce.Do(func() {
		h, err := windows.CreateJobObject(nil, nil)
		if err != nil {
			jobErr = err
			return
		}
		info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
			BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
				LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE |
					windows.JOB_OBJECT_LIMIT_DIE_ON_UNHANDLED_EXCEPTION |
					windows.JOB_OBJECT_LIMIT_BREAKAWAY_OK |
					windows.JOB_OBJECT_LIMIT_SILENT_BREAKAWAY_OK,
			},
		}
		_, err = windows.SetInformationJobObject(
			h,
			windows.JobObjectExtendedLimitInformation,
			uintptr(unsafe.Pointer(&info)),
			uint32(unsafe.Sizeof(info)),
		)
		if err != nil {
			jobErr = err
			return
		}
		jobHandle = h
	})
	return jobHandle, jobErr
}

// addToJob assigns cmd's already-started process to the shared job object.
func addToJob(cmd *exec.Cmd) error {
	h, err := processJob()
	if err != nil {
		return err
	}
	if cmd.Process == nil {
		return nil
	}
	procHandle, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(procHandle)
	return windows.AssignProcessToJobObject(h, procHandle)
}
