package infra

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

const fieldSeparator = "|||"

const frontWindowScript = `
tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set appId to bundle identifier of frontApp
	try
		set windowTitle to name of front window of frontApp
	on error
		set windowTitle to ""
	end try
	return appId & "|||" & appName & "|||" & windowTitle
end tell`

const chromeTabScript = `
tell application "Google Chrome"
	if (count of windows) > 0 then
		set activeTab to active tab of front window
		return URL of activeTab & "|||" & title of activeTab
	end if
end tell`

const safariTabScript = `
tell application "Safari"
	if (count of windows) > 0 then
		set activeTab to current tab of front window
		return URL of activeTab & "|||" & name of activeTab
	end if
end tell`

const focusedElementScript = `
tell application "System Events"
	try
		set focusedElement to focused element of (first application process whose frontmost is true)
		set elementValue to value of focusedElement
		if elementValue is not missing value then
			return elementValue as string
		end if
	on error
		return ""
	end try
end tell`

// AppleScriptCapturer implements domain.ContextCapturer by querying
// System Events via osascript, enriched with process details.
type AppleScriptCapturer struct {
	resolver *ProcessResolver
	clock    domain.Clock
	logger   *zap.Logger
	timeout  time.Duration
}

// NewAppleScriptCapturer creates a macOS window capturer.
func NewAppleScriptCapturer(resolver *ProcessResolver, clock domain.Clock, logger *zap.Logger) *AppleScriptCapturer {
	return &AppleScriptCapturer{
		resolver: resolver,
		clock:    clock,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// CaptureActiveWindow returns the frontmost window context. Browser
// URL and on-screen text lookups are best effort.
func (c *AppleScriptCapturer) CaptureActiveWindow(ctx context.Context) (*domain.WindowContext, error) {
	out, err := c.osascript(ctx, frontWindowScript)
	if err != nil {
		return nil, fmt.Errorf("query frontmost window: %w", err)
	}

	parts := strings.SplitN(out, fieldSeparator, 3)
	info := &domain.WindowContext{CapturedAt: c.clock.Now()}
	if len(parts) > 0 {
		info.AppID = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		info.AppName = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		info.Title = strings.TrimSpace(parts[2])
	}
	if info.AppID == "" {
		info.AppID = info.AppName
	}

	if domain.IsBrowserApp(info.AppID) {
		c.fillBrowserInfo(ctx, info)
	}

	if text, err := c.osascript(ctx, focusedElementScript); err == nil {
		if text != "" && text != "missing value" {
			info.OnScreenText = text
		}
	}

	if c.resolver != nil && info.AppName != "" {
		if proc, err := c.resolver.FindByName(info.AppName); err == nil && proc != nil {
			info.PID = proc.PID
			info.ExePath = proc.ExePath
		}
	}

	return info, nil
}

// fillBrowserInfo asks the browser for its active tab. Failures leave
// the capture without URL data.
func (c *AppleScriptCapturer) fillBrowserInfo(ctx context.Context, info *domain.WindowContext) {
	var script string
	switch {
	case strings.Contains(info.AppID, "Chrome"):
		script = chromeTabScript
	case strings.Contains(info.AppID, "Safari"):
		script = safariTabScript
	default:
		return
	}

	out, err := c.osascript(ctx, script)
	if err != nil {
		c.logger.Debug("browser tab query failed", zap.Error(err))
		return
	}
	parts := strings.SplitN(out, fieldSeparator, 2)
	rawURL := strings.TrimSpace(parts[0])
	if rawURL == "" || rawURL == "missing value" {
		return
	}

	info.URL = rawURL
	if u, err := url.Parse(rawURL); err == nil {
		info.URLDomain = u.Hostname()
	}
	if len(parts) > 1 && info.Title == "" {
		info.Title = strings.TrimSpace(parts[1])
	}
}

func (c *AppleScriptCapturer) osascript(ctx context.Context, script string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := exec.CommandContext(callCtx, "osascript", "-e", script).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

var _ domain.ContextCapturer = (*AppleScriptCapturer)(nil)
