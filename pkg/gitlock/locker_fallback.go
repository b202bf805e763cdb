//go:build !unix

package gitlock

import (
	"os"

	"gitgate/pkg/protocol"
)

// Without an advisory-locking primitive the manager fails open:
// operations run unlocked and the degradation is recorded loudly.
func tryFlock(f *os.File) error {
	return &protocol.LockUnavailableError{
		LockPath: f.Name(),
		Reason:   "no advisory locking primitive on this platform",
	}
}

func unflock(_ *os.File) error {
	return nil
}
