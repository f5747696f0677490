package domain

import (
	"context"
	"time"
)

// ContextCapturer reads the frontmost window from the OS.
// Implementation: AppleScript via osascript, enriched with gopsutil.
type ContextCapturer interface {
	// CaptureActiveWindow returns the current frontmost window context.
	CaptureActiveWindow(ctx context.Context) (*WindowContext, error)
}

// ScreenCapturer produces screen artifacts for classification.
type ScreenCapturer interface {
	// Capture takes a screenshot and returns the artifact.
	Capture(ctx context.Context) (Artifact, error)

	// Cleanup removes artifacts captured during the session.
	Cleanup() error
}

// IdleMonitor reads system input-idle time.
// Implementation: ioreg HIDIdleTime on macOS.
type IdleMonitor interface {
	// IdleSeconds returns seconds since the last keyboard/mouse input.
	IdleSeconds(ctx context.Context) (float64, error)
}

// FocusClassifier judges whether a screen observation is on task.
// Implementation: vision model over the redacted screenshot.
type FocusClassifier interface {
	// ClassifyFocus returns a label and a short reason for the artifact,
	// judged against the user's stated work context.
	ClassifyFocus(ctx context.Context, artifact Artifact, workContext string) (*Classification, error)
}

// TextGenerator produces short coaching text from prompts.
type TextGenerator interface {
	// GenerateText returns the model output for a system/user prompt pair.
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// Redactor masks sensitive regions of a screen artifact before it
// leaves the machine.
type Redactor interface {
	// RedactSensitiveRegions returns the (possibly new) artifact with
	// sensitive regions masked. Failure leaves the artifact unusable.
	RedactSensitiveRegions(ctx context.Context, artifact Artifact) (Artifact, error)
}

// SessionStore persists completed focus sessions.
// Implementation: SQLCipher encrypted database.
type SessionStore interface {
	// AddSession appends one completed session.
	AddSession(rec SessionRecord) error

	// ListSessions returns the most recent sessions, newest first.
	ListSessions(limit int) ([]SessionRecord, error)

	// ClearSessions removes all history.
	ClearSessions() error

	// Close releases the underlying database connection.
	Close() error
}

// SecretStore provides encrypted persistent storage for secrets
// such as the AI API key.
type SecretStore interface {
	// GetSecret retrieves a secret by key.
	GetSecret(key string) (string, error)

	// SetSecret stores a secret.
	SetSecret(key, value string) error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// Ticker abstracts time.Ticker so loops can run on a virtual clock.
type Ticker interface {
	// C returns the tick channel.
	C() <-chan time.Time

	// Stop stops ticking. Does not close the channel.
	Stop()
}

// Clock abstracts wall-clock access for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}
