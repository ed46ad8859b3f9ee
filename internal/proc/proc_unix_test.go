//go:build !windows

package proc

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// processGone reports whether pid has exited. A zombie nobody has reaped
// yet counts as gone.
func processGone(pid int) bool {
	if unix.Kill(pid, 0) == unix.ESRCH {
		return true
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	_, rest, ok := strings.Cut(string(data), ") ")
	return ok && strings.HasPrefix(rest, "Z")
}
