package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// PTYLauncher starts shells on a pseudo-terminal
type PTYLauncher struct{}

// Launch implements Launcher
func (PTYLauncher) Launch(spec Spec) (Process, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	ptmx, err := pty.StartWithSize(cmd, winsize(spec.Cols, spec.Rows))
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	return &ptyProcess{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}, nil
}

type ptyProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File

	done      chan struct{}
	closeOnce sync.Once
}

func (p *ptyProcess) Read(b []byte) (int, error)  { return p.ptmx.Read(b) }
func (p *ptyProcess) Write(b []byte) (int, error) { return p.ptmx.Write(b) }

func (p *ptyProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *ptyProcess) Resize(cols, rows int) error {
	return pty.Setsize(p.ptmx, winsize(cols, rows))
}

// winsize clamps dimensions into the 16-bit window size
func winsize(cols, rows int) *pty.Winsize {
	return &pty.Winsize{Cols: clampDimension(cols), Rows: clampDimension(rows)}
}

func clampDimension(n int) uint16 {
	switch {
	case n < 1:
		return 1
	case n > MaxDimension:
		return MaxDimension
	}
	return uint16(n)
}

func (p *ptyProcess) Wait() error {
	err := p.cmd.Wait()
	close(p.done)
	p.closePTY()
	return err
}

func (p *ptyProcess) Finish() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	err := p.cmd.Process.Signal(syscall.SIGKILL)
	p.closePTY()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *ptyProcess) closePTY() {
	p.closeOnce.Do(func() {
		p.ptmx.Close()
	})
}
