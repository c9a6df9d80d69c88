package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// ServiceSpec describes one supervised stage process.
type ServiceSpec struct {
	Name string
	Args []string
}

// Process is a handle to a spawned service process.
type Process interface {
	PID() int
	// Done is closed when the process exits.
	Done() <-chan struct{}
	Alive() bool
	// Terminate requests a graceful shutdown (SIGTERM).
	Terminate() error
	// Kill forcibly ends the process (SIGKILL).
	Kill() error
}

// Runner spawns service processes. The exec-backed implementation re-invokes
// the current executable; tests substitute a fake.
type Runner interface {
	Start(spec ServiceSpec) (Process, error)
}

// ExecRunner launches services as child processes of the given executable.
type ExecRunner struct {
	Executable string
}

func (r *ExecRunner) command(spec ServiceSpec) *exec.Cmd {
	cmd := exec.Command(r.Executable, spec.Args...)
	// Children inherit the supervisor's streams so output emitted before a
	// service's own logger exists (startup failures, panics) is not lost.
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stdout
	return cmd
}

// Start spawns the service and begins reaping it in the background.
func (r *ExecRunner) Start(spec ServiceSpec) (Process, error) {
	cmd := r.command(spec)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	proc := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		proc.mu.Lock()
		proc.waitErr = err
		proc.mu.Unlock()
		close(proc.done)
	}()
	return proc, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", p.PID(), err)
	}
	return nil
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", p.PID(), err)
	}
	return nil
}
