//go:build windows

package proc

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Configure keeps the backend from opening a console window when launched
// from a GUI host and gives it its own process group.
func Configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP
}

// group is a job object holding the backend and everything it starts. A
// venv's python.exe is a launcher that runs the base interpreter as a
// child, so killing the launcher alone leaves the backend running.
type group struct {
	job windows.Handle
}

// newGroup makes cancellation terminate the whole job. The child joins the
// job in attach, right after it starts.
func newGroup(cmd *exec.Cmd) *group {
	g := &group{}
	if cmd.Cancel == nil {
		return g
	}
	cmd.Cancel = func() error {
		if g.job != 0 {
			if err := windows.TerminateJobObject(g.job, 1); err == nil {
				return nil
			}
		}
		return cmd.Process.Kill()
	}
	return g
}

func (g *group) attach(cmd *exec.Cmd) error {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return fmt.Errorf("create job object: %w", err)
	}
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(job, windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info))); err != nil {
		windows.CloseHandle(job)
		return fmt.Errorf("configure job object: %w", err)
	}
	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		windows.CloseHandle(job)
		return fmt.Errorf("open backend process: %w", err)
	}
	defer windows.CloseHandle(proc)
	if err := windows.AssignProcessToJobObject(job, proc); err != nil {
		windows.CloseHandle(job)
		return fmt.Errorf("assign job object: %w", err)
	}
	g.job = job
	return nil
}

// close releases the job. Processes still in it are killed.
func (g *group) close() {
	if g.job != 0 {
		windows.CloseHandle(g.job)
		g.job = 0
	}
}

// Environment variable names are case-insensitive on Windows.
func envKeyEqual(a, b string) bool { return strings.EqualFold(a, b) }
