//go:build integration

package integration

import (
	"context"
	"sync"
	"time"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// fakeClock hands out manually fired tickers keyed by interval, so a
// scenario can drive exactly one loop at a time.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[time.Duration]*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		tickers: make(map[time.Duration]*fakeTicker),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) domain.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers[d] = t
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// fire blocks until the owning loop consumes the tick.
func (c *fakeClock) fire(d time.Duration) {
	c.mu.Lock()
	t := c.tickers[d]
	now := c.now
	c.mu.Unlock()
	t.ch <- now
}

type fakeCapturer struct {
	mu   sync.Mutex
	info domain.WindowContext
}

func (f *fakeCapturer) setWindow(info domain.WindowContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = info
}

func (f *fakeCapturer) CaptureActiveWindow(context.Context) (*domain.WindowContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := f.info
	return &info, nil
}

type fakeScreens struct {
	mu       sync.Mutex
	cleanups int
}

func (f *fakeScreens) Capture(context.Context) (domain.Artifact, error) {
	return domain.Artifact{Path: "shot.png"}, nil
}

func (f *fakeScreens) Cleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return nil
}

func (f *fakeScreens) cleanupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleanups
}

type passRedactor struct{}

func (passRedactor) RedactSensitiveRegions(_ context.Context, a domain.Artifact) (domain.Artifact, error) {
	a.Redacted = true
	return a, nil
}

// fakeClassifier replays a queue of verdicts, defaulting to focused.
type fakeClassifier struct {
	mu    sync.Mutex
	queue []domain.Classification
}

func (f *fakeClassifier) push(cls ...domain.Classification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, cls...)
}

func (f *fakeClassifier) ClassifyFocus(context.Context, domain.Artifact, string) (*domain.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return &domain.Classification{Label: domain.LabelFocused, Reason: "on task"}, nil
	}
	cls := f.queue[0]
	f.queue = f.queue[1:]
	return &cls, nil
}

type fakeIdle struct {
	mu      sync.Mutex
	seconds float64
}

func (f *fakeIdle) set(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seconds = seconds
}

func (f *fakeIdle) IdleSeconds(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seconds, nil
}

type fakeTextGen struct {
	mu       sync.Mutex
	response string
}

func (f *fakeTextGen) GenerateText(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response, nil
}

type memoryStore struct {
	mu      sync.Mutex
	records []domain.SessionRecord
}

func (f *memoryStore) AddSession(rec domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *memoryStore) ListSessions(int) ([]domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SessionRecord{}, f.records...), nil
}

func (f *memoryStore) ClearSessions() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = nil
	return nil
}

func (f *memoryStore) Close() error { return nil }

func (f *memoryStore) saved() []domain.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SessionRecord{}, f.records...)
}
