package subprocess

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// StdioMode selects how a spawned child's standard stream is wired.
type StdioMode int

const (
	// StdioInherit connects the child's stream to this process's own.
	StdioInherit StdioMode = iota
	// StdioPiped exposes the stream as a Go io.Reader/io.Writer.
	StdioPiped
	// StdioNull discards the stream (reads as EOF, writes are dropped).
	StdioNull
)

// SpawnOptions configures a single child process launch.
type SpawnOptions struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // nil means inherit os.Environ()

	Stdin  StdioMode
	Stdout StdioMode
	Stderr StdioMode

	// KillSignal is sent on a graceful Stop; KillTimeout bounds how long to
	// wait before force-killing.
	KillSignal  os.Signal
	KillTimeout time.Duration

	Logger hclog.Logger
}

// Process is a running (or exited) spawned child, exposing the libuv-style
// contract spec.md §4.12 describes: synchronous wait, non-blocking poll,
// signal delivery including the signal-0 liveness probe.
type Process struct {
	child  *Child
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// Spawn resolves opts.Command via the platform's executable lookup order
// (see lookup_windows.go for the Windows rules; stdlib exec.LookPath's
// PATH search on other platforms), wires stdio per opts, and starts the
// process under this process's supervision job (see jobobject_windows.go).
func Spawn(opts SpawnOptions) (*Process, error) {
	resolved, err := lookupExecutable(opts.Command)
	if err != nil {
		return nil, err
	}

	cmd := buildCommand(resolved, opts.Args)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	p := &Process{cmd: cmd}
	if err := wireStdio(cmd, p, opts); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	killSignal := opts.KillSignal
	if killSignal == nil {
		killSignal = os.Interrupt
	}
	killTimeout := opts.KillTimeout
	if killTimeout == 0 {
		killTimeout = 10 * time.Second
	}

	child, err := newChild(NewInput{
		Cmd:         cmd,
		KillSignal:  killSignal,
		KillTimeout: killTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	if err := child.Start(); err != nil {
		return nil, err
	}
	if err := addToJob(cmd); err != nil {
		logger.Debug("job object attach failed", "error", err)
	}
	p.child = child
	return p, nil
}

func wireStdio(cmd *exec.Cmd, p *Process, opts SpawnOptions) error {
	switch opts.Stdin {
	case StdioInherit:
		cmd.Stdin = os.Stdin
	case StdioNull:
		cmd.Stdin = nil
	case StdioPiped:
		w, err := cmd.StdinPipe()
		if err != nil {
			return err
		}
		p.stdin = w
	}
	switch opts.Stdout {
	case StdioInherit:
		cmd.Stdout = os.Stdout
	case StdioNull:
		cmd.Stdout = io.Discard
	case StdioPiped:
		r, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		p.stdout = r
	}
	switch opts.Stderr {
	case StdioInherit:
		cmd.Stderr = os.Stderr
	case StdioNull:
		cmd.Stderr = io.Discard
	case StdioPiped:
		r, err := cmd.StderrPipe()
		if err != nil {
			return err
		}
		p.stderr = r
	}
	return nil
}

// Stdin/Stdout/Stderr expose piped streams; nil unless the corresponding
// StdioMode was StdioPiped.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }
func (p *Process) Stdout() io.ReadCloser { return p.stdout }
func (p *Process) Stderr() io.ReadCloser { return p.stderr }

// Pid returns the OS process id, or 0 if the process never started.
func (p *Process) Pid() int { return p.child.Pid() }

// Wait blocks until the process exits, returning its exit code.
func (p *Process) Wait() (int, error) {
	code, ok := <-p.child.ExitCh()
	if !ok {
		return -1, errors.New("subprocess: manager closed before process exited")
	}
	return code, nil
}

// TryWait polls for exit without blocking, reporting (code, true) if the
// process has already exited, or (0, false) if it's still running.
func (p *Process) TryWait() (int, bool) {
	select {
	case code, ok := <-p.child.ExitCh():
		if !ok {
			return -1, true
		}
		return code, true
	default:
		return 0, false
	}
}

// Signal delivers sig to the process. Signal(syscall.Signal(0)) is the
// portable liveness probe: it returns nil if the process exists and this
// process has permission to signal it, an error otherwise, without
// actually terminating or otherwise disturbing the target.
func (p *Process) Signal(sig os.Signal) error {
	if s, ok := sig.(syscall.Signal); ok && s == 0 {
		return p.child.signal(sig)
	}
	return p.child.Signal(sig)
}

// Kill sends the configured kill signal, force-terminates the process if
// it has not exited within the kill timeout, and waits for it to exit.
func (p *Process) Kill() { p.child.Kill() }

// Stop sends the configured graceful kill signal, escalating to a forced
// kill after KillTimeout, and waits for exit.
func (p *Process) Stop() { p.child.Stop() }
