package procutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Alive reports whether pid refers to a live, non-zombie process. It
// probes with signal 0: ESRCH means the process is gone, EPERM means it
// exists but is owned by someone else (treated as alive), any other
// error means not alive, and a successful probe falls through to a
// zombie check against /proc/<pid>/status.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(pid, 0)
	switch {
	case err == unix.ESRCH:
		return false
	case err == unix.EPERM:
		return true
	case err != nil:
		return false
	}

	return !isZombie(pid)
}

// isZombie inspects /proc/<pid>/status for a "State:" line reporting Z
// (zombie). Any failure to read /proc is treated as "not a zombie";
// the caller has already confirmed the PID is signalable.
func isZombie(pid int) bool {
	f, err := os.Open(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "State:") {
			return strings.Contains(line, "Z")
		}
	}
	return false
}

// Signal sends sig to pid, treating ESRCH (already gone) as success.
func Signal(pid int, sig unix.Signal) error {
	err := unix.Kill(pid, sig)
	if err == unix.ESRCH {
		return nil
	}
	return err
}
