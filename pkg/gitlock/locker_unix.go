//go:build unix

package gitlock

import (
	"os"
	"syscall"
)

// tryFlock attempts a non-blocking exclusive flock on f.
// Returns errWouldBlock if another holder has the lock.
func tryFlock(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK || err == syscall.EAGAIN {
		return errWouldBlock
	}
	return err
}

// unflock releases an exclusive flock on f.
func unflock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
