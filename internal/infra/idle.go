package infra

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

// HIDIdleMonitor reads input idle time from the macOS IOKit registry.
type HIDIdleMonitor struct{}

// NewHIDIdleMonitor creates the ioreg-backed idle monitor.
func NewHIDIdleMonitor() *HIDIdleMonitor { return &HIDIdleMonitor{} }

// IdleSeconds returns seconds since the last keyboard or mouse input,
// derived from the HIDIdleTime property (nanoseconds).
func (m *HIDIdleMonitor) IdleSeconds(ctx context.Context) (float64, error) {
	out, err := exec.CommandContext(ctx, "ioreg", "-r", "-k", "HIDIdleTime", "-d", "1").Output()
	if err != nil {
		return 0, fmt.Errorf("read HIDIdleTime: %w", err)
	}
	return parseHIDIdleTime(string(out))
}

func parseHIDIdleTime(output string) (float64, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "HIDIdleTime") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		nanos, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("parse HIDIdleTime value: %w", err)
		}
		return nanos / 1e9, nil
	}
	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}

var _ domain.IdleMonitor = (*HIDIdleMonitor)(nil)
