//go:build !windows

package proc

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Configure puts the child in its own process group and makes context
// cancellation kill the whole group, so helpers the backend spawned do not
// outlive the call.
func Configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	if cmd.Cancel == nil {
		return
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if err == unix.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
}

// group is a no-op on Unix: the process group set up by Configure already
// reaches every descendant.
type group struct{}

func newGroup(*exec.Cmd) *group       { return &group{} }
func (*group) attach(*exec.Cmd) error { return nil }
func (*group) close()                 {}

func envKeyEqual(a, b string) bool { return a == b }
