package infra

import (
	"time"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

// RealClock implements domain.Clock with the system clock.
type RealClock struct{}

// NewRealClock returns the system clock.
func NewRealClock() RealClock { return RealClock{} }

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// NewTicker returns a ticker backed by time.Ticker.
func (RealClock) NewTicker(d time.Duration) domain.Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

var _ domain.Clock = RealClock{}
