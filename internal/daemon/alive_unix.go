//go:build !windows

package daemon

import "syscall"

// processAlive reports whether a process with the given PID exists.
// Signal 0 tests for existence without delivering a signal.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
