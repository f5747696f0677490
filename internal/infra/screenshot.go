package infra

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

// ScreenshotManager implements domain.ScreenCapturer using the macOS
// screencapture tool. Files are tracked and removed at session end.
type ScreenshotManager struct {
	dir    string
	clock  domain.Clock
	logger *zap.Logger

	mu      sync.Mutex
	counter int
	files   []string
}

// NewScreenshotManager captures into dir (created on first use).
func NewScreenshotManager(dir string, clock domain.Clock, logger *zap.Logger) *ScreenshotManager {
	return &ScreenshotManager{dir: dir, clock: clock, logger: logger}
}

// Capture takes a silent full-screen screenshot.
func (m *ScreenshotManager) Capture(ctx context.Context) (domain.Artifact, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return domain.Artifact{}, fmt.Errorf("create screenshot directory: %w", err)
	}

	m.mu.Lock()
	m.counter++
	n := m.counter
	m.mu.Unlock()

	stamp := strings.ReplaceAll(m.clock.Now().UTC().Format("2006-01-02T15-04-05.000"), ".", "-")
	path := filepath.Join(m.dir, fmt.Sprintf("window-change-%d-%s.png", n, stamp))

	if err := exec.CommandContext(ctx, "screencapture", "-x", path).Run(); err != nil {
		return domain.Artifact{}, fmt.Errorf("screencapture: %w", err)
	}

	m.mu.Lock()
	m.files = append(m.files, path)
	m.mu.Unlock()

	return domain.Artifact{Path: path}, nil
}

// Cleanup removes every screenshot captured so far.
func (m *ScreenshotManager) Cleanup() error {
	m.mu.Lock()
	files := m.files
	m.files = nil
	m.mu.Unlock()

	var firstErr error
	removed := 0
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	m.logger.Debug("session screenshots cleaned up",
		zap.Int("removed", removed),
		zap.Int("total", len(files)))
	return firstErr
}

var _ domain.ScreenCapturer = (*ScreenshotManager)(nil)
