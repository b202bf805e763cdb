package gitlock

import (
	"os"
	"syscall"
)

// IsProcessAlive checks whether a process with the given PID is
// running. On Unix, sending signal 0 checks for existence without
// actually signaling.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0: no signal sent, just checks if process exists.
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
