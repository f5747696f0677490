// Package infra implements infrastructure concerns: OS introspection,
// screen capture, the AI client, and encrypted persistence.
package infra

import (
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo describes a resolved OS process.
type ProcessInfo struct {
	PID     int32
	Name    string
	ExePath string
}

// ProcessResolver looks up process details via gopsutil. Used to
// enrich window captures with PID and executable path.
type ProcessResolver struct{}

// NewProcessResolver creates a process resolver.
func NewProcessResolver() *ProcessResolver { return &ProcessResolver{} }

// FindByName returns the first process whose name matches the given
// app name (case-insensitive), or nil when none matches.
func (r *ProcessResolver) FindByName(name string) (*ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	nameLower := strings.ToLower(name)
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue // process may have exited
		}
		if !strings.EqualFold(pname, name) && !strings.Contains(strings.ToLower(pname), nameLower) {
			continue
		}
		info := &ProcessInfo{PID: p.Pid, Name: pname}
		if exe, err := p.Exe(); err == nil {
			info.ExePath = exe
		}
		return info, nil
	}
	return nil, nil
}

// IsRunning checks if a PID exists and is running.
func (r *ProcessResolver) IsRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
