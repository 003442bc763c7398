// Package daemon holds the small amount of process bookkeeping the serve
// command needs: a PID file so operators and init scripts can find (and
// stop) a running server.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PIDFile manages the server's PID file.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Acquire writes the current process's PID, refusing if another live PID is
// already recorded there.
func (p *PIDFile) Acquire() error {
	if pid, err := p.Read(); err == nil && processAlive(pid) {
		return fmt.Errorf("server already running with PID %d (pid file %s)", pid, p.Path)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Running returns the recorded PID when it belongs to a live process.
func (p *PIDFile) Running() (int, bool) {
	pid, err := p.Read()
	if err != nil || !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

// Release deletes the PID file.
func (p *PIDFile) Release() error {
	err := os.Remove(p.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
