//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// Signals are the signals that end a session gracefully.
func Signals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}
