package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	// Code is the exit code, or -1 when the process was killed by a signal
	// or could not be waited on.
	Code int
	// Signal is the name of the terminating signal, if any.
	Signal string
}

func (e ExitStatus) String() string {
	if e.Signal != "" {
		return "signal " + e.Signal
	}
	return "exit code " + strconv.Itoa(e.Code)
}

// Success reports whether the process exited with code 0.
func (e ExitStatus) Success() bool {
	return e.Code == 0 && e.Signal == ""
}

// Process is a running child whose stdout and stderr share one pipe.
//
// Process is safe for concurrent use, except that Lines may be consumed
// only once.
type Process struct {
	// Name is the command line, for logging.
	Name    string
	Started time.Time

	cmd    *exec.Cmd
	output *os.File

	done     chan struct{}
	exit     ExitStatus
	consumed atomic.Bool

	closeOnce sync.Once
}

// Launch starts command in dir with the current environment plus env.
// The child's stdout and stderr are attached to the same pipe so lines
// arrive in the order the OS delivers them.
func Launch(command string, args []string, dir string, env []string) (*Process, error) {
	name := commandLine(command, args)

	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, &LaunchError{Command: name, Reason: "invalid working directory " + dir, Err: err}
		}
		if !info.IsDir() {
			return nil, &LaunchError{Command: name, Reason: "working directory is not a directory: " + dir}
		}
	}

	// Bare names are resolved on PATH; anything with a separator is taken
	// relative to dir by the OS.
	if filepath.Base(command) == command {
		if _, err := exec.LookPath(command); err != nil {
			return nil, &LaunchError{Command: name, Reason: "executable not found", Err: err}
		}
	} else if !filepath.IsAbs(command) {
		if _, err := os.Stat(filepath.Join(dir, command)); err != nil {
			return nil, &LaunchError{Command: name, Reason: "executable not found", Err: err}
		}
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	setProcAttr(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Command: name, Reason: "create output pipe", Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, &LaunchError{Command: name, Reason: "start process", Err: err}
	}
	// The child holds its own copy of the write end; ours must go so the
	// reader sees EOF when the child exits.
	_ = pw.Close()

	p := &Process{
		Name:    name,
		Started: time.Now(),
		cmd:     cmd,
		output:  pr,
		done:    make(chan struct{}),
	}
	go p.waitLoop()
	return p, nil
}

// PID returns the OS process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits and returns its exit status.
func (p *Process) Wait() ExitStatus {
	<-p.done
	return p.exit
}

// Output returns the combined output stream.
func (p *Process) Output() io.Reader {
	return p.output
}

// Lines yields the combined output one line at a time, without the line
// terminator. The sequence ends when the output reaches EOF or is closed.
// It can be ranged over once; later calls yield nothing.
func (p *Process) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !p.consumed.CompareAndSwap(false, true) {
			return
		}
		r := bufio.NewReader(p.output)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				line = strings.TrimRight(line, "\r\n")
				if !yield(line) {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
}

// Terminate asks the process to stop and forces it after grace. Calling
// it on an exited process is a no-op.
func (p *Process) Terminate(grace time.Duration) error {
	if p.Exited() {
		return nil
	}

	if err := signalTerminate(p.cmd); err != nil {
		if errors.Is(err, os.ErrProcessDone) || p.Exited() {
			return nil
		}
		return fmt.Errorf("terminate %s: %w", p.Name, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	if err := signalKill(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) && !p.Exited() {
		return fmt.Errorf("kill %s: %w", p.Name, err)
	}
	<-p.done
	return nil
}

// Close releases the read end of the output pipe, ending Lines. It does
// not stop the process.
func (p *Process) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.output.Close()
	})
	return err
}

func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	exit := ExitStatus{Code: -1}
	if ps := p.cmd.ProcessState; ps != nil {
		exit.Code = ps.ExitCode()
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			exit.Signal = ws.Signal().String()
		}
	} else if err == nil {
		exit.Code = 0
	}

	p.exit = exit
	close(p.done)
}
