package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
	"github.com/zacteqye72-art/project-focus-app/internal/entitycache"
	"github.com/zacteqye72-art/project-focus-app/internal/nudge"
	"github.com/zacteqye72-art/project-focus-app/internal/sampler"
	"github.com/zacteqye72-art/project-focus-app/internal/stabilizer"
)

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// fakeClock hands out manually fired tickers keyed by interval.
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

// advance moves the clock's notion of now forward by d.
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

// fire blocks until the loop consumes the tick, so the previous
// handler is guaranteed to have finished.
func (c *fakeClock) fire(d time.Duration) {
	c.mu.Lock()
	t := c.tickers[d]
	now := c.now
	c.mu.Unlock()
	t.ch <- now
}

type fakeCapturer struct {
	mu   sync.Mutex
	info *domain.WindowContext
}

func (f *fakeCapturer) CaptureActiveWindow(context.Context) (*domain.WindowContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := *f.info
	return &info, nil
}

func (f *fakeCapturer) set(appID, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = &domain.WindowContext{AppID: appID, Title: title}
}

type fakeScreens struct {
	mu       sync.Mutex
	captures int
	cleanups int
}

func (f *fakeScreens) Capture(context.Context) (domain.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	return domain.Artifact{Path: "shot.png"}, nil
}

func (f *fakeScreens) Cleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return nil
}

type passRedactor struct{}

func (passRedactor) RedactSensitiveRegions(_ context.Context, a domain.Artifact) (domain.Artifact, error) {
	a.Redacted = true
	return a, nil
}

type fakeClassifier struct {
	mu    sync.Mutex
	queue []domain.Classification
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

type fakeIdle struct{ seconds float64 }

func (f *fakeIdle) IdleSeconds(context.Context) (float64, error) { return f.seconds, nil }

type fakeTextGen struct {
	mu       sync.Mutex
	response string
	calls    int
	prompts  []string
	gate     chan struct{} // when set, blocks generation until closed
}

func (f *fakeTextGen) GenerateText(ctx context.Context, _, user string) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, user)
	return f.response, nil
}

func (f *fakeTextGen) allPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.prompts...)
}

func (f *fakeTextGen) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeStore struct {
	mu      sync.Mutex
	records []domain.SessionRecord
}

func (f *fakeStore) AddSession(rec domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) ListSessions(int) ([]domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SessionRecord{}, f.records...), nil
}

func (f *fakeStore) ClearSessions() error { return nil }
func (f *fakeStore) Close() error         { return nil }

const validNudgeMsg = "Your attention score is decreasing, you can try to add one figure to quarterly_report"

type sessionHarness struct {
	runner    *SessionRunner
	clock     *fakeClock
	capturer  *fakeCapturer
	screens   *fakeScreens
	classy    *fakeClassifier
	textGen   *fakeTextGen
	store     *fakeStore
	states    chan domain.FocusState
	nudges    chan *domain.NudgeResult
	reminders chan string

	cancel context.CancelFunc
	done   chan struct{}
	record domain.SessionRecord
	runErr error
}

func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()

	h := &sessionHarness{
		clock: newFakeClock(),
		capturer: &fakeCapturer{info: &domain.WindowContext{
			AppID: "com.apple.TextEdit",
			Title: "drafting quarterly_report summary",
		}},
		screens:   &fakeScreens{},
		classy:    &fakeClassifier{},
		textGen:   &fakeTextGen{response: validNudgeMsg},
		store:     &fakeStore{},
		states:    make(chan domain.FocusState, 16),
		nudges:    make(chan *domain.NudgeResult, 16),
		reminders: make(chan string, 16),
		done:      make(chan struct{}),
	}

	cfg := SessionConfig{
		Subject:    "write the quarterly report",
		Sampler:    sampler.Config{HeartbeatInterval: 7 * time.Minute},
		Cache:      entitycache.DefaultConfig(),
		Nudge:      nudge.DefaultConfig(),
		Stabilizer: stabilizer.DefaultConfig(),
	}
	deps := SessionDeps{
		Capturer:   h.capturer,
		Screens:    h.screens,
		Redactor:   passRedactor{},
		Classifier: h.classy,
		Idle:       &fakeIdle{},
		TextGen:    h.textGen,
		Store:      h.store,
		Clock:      h.clock,
		Logger:     zap.NewNop(),
	}
	events := SessionEvents{
		OnStateChange: func(state domain.FocusState, _ string) { h.states <- state },
		OnNudge:       func(result *domain.NudgeResult) { h.nudges <- result },
		OnReminder:    func(message string) { h.reminders <- message },
	}
	h.runner = NewSessionRunner(cfg, deps, events)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.record, h.runErr = h.runner.Run(ctx)
		close(h.done)
	}()

	// One sampler heartbeat plus three monitor tickers.
	require.Eventually(t, func() bool { return h.clock.tickerCount() == 4 },
		2*time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *sessionHarness) waitState(t *testing.T) domain.FocusState {
	t.Helper()
	select {
	case s := <-h.states:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state change")
		return ""
	}
}

func (h *sessionHarness) finish(t *testing.T) domain.SessionRecord {
	t.Helper()
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to end")
	}
	return h.record
}

func TestSessionRunner_DistractedFlow(t *testing.T) {
	h := newSessionHarness(t)
	h.classy.queue = []domain.Classification{
		{Label: domain.LabelDistracted, Reason: "video playing"},
	}

	// Poll sees the first window, triggering a classification.
	h.clock.fire(time.Second)

	assert.Equal(t, domain.StateDistracted, h.waitState(t))

	var result *domain.NudgeResult
	select {
	case result = <-h.nudges:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for nudge")
	}
	assert.Equal(t, validNudgeMsg, result.Message)
	assert.False(t, result.Fallback)
	assert.Contains(t, result.Entities, "quarterly_report")

	// A reminder fires while distracted, built from the on-task sample.
	h.clock.fire(5 * time.Second)
	select {
	case msg := <-h.reminders:
		assert.Equal(t, validNudgeMsg, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reminder")
	}

	record := h.finish(t)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "write the quarterly report", record.Subject)
	assert.Equal(t, 1, record.Nudges)
	assert.Equal(t, 1, record.Reminders)
	assert.NoError(t, h.runErr)
}

func TestSessionRunner_PersistsRecordAndCleansUp(t *testing.T) {
	h := newSessionHarness(t)

	record := h.finish(t)

	h.store.mu.Lock()
	saved := append([]domain.SessionRecord{}, h.store.records...)
	h.store.mu.Unlock()
	require.Len(t, saved, 1)
	assert.Equal(t, record.ID, saved[0].ID)

	h.screens.mu.Lock()
	cleanups := h.screens.cleanups
	h.screens.mu.Unlock()
	assert.Equal(t, 1, cleanups)
}

func TestSessionRunner_FocusedStateEmitsNoNudge(t *testing.T) {
	h := newSessionHarness(t)
	h.classy.queue = []domain.Classification{
		{Label: domain.LabelFocused, Reason: "editor open"},
	}

	h.clock.fire(time.Second)
	assert.Equal(t, domain.StateFocused, h.waitState(t))

	select {
	case <-h.nudges:
		t.Fatal("focused state must not trigger a nudge")
	case <-time.After(50 * time.Millisecond):
	}

	record := h.finish(t)
	assert.Zero(t, record.Nudges)
}

func TestSessionRunner_DistractionDoesNotPoisonOnTaskMemory(t *testing.T) {
	h := newSessionHarness(t)
	h.classy.queue = []domain.Classification{
		{Label: domain.LabelFocused, Reason: "editing"},
		{Label: domain.LabelDistracted, Reason: "video playing"},
	}

	// Establish the on-task window.
	h.clock.fire(time.Second)
	assert.Equal(t, domain.StateFocused, h.waitState(t))

	// Drift to a distracting window; its milestone sample must not
	// become the continuation context.
	h.capturer.set("com.google.Chrome", "CatVideoCompilation marathon - YouTube")
	h.clock.advance(3 * time.Second)
	h.clock.fire(time.Second)
	assert.Equal(t, domain.StateDistracted, h.waitState(t))

	select {
	case <-h.nudges:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for nudge")
	}

	meta := h.runner.currentMeta()
	assert.Equal(t, "com.apple.TextEdit", meta.AppID)

	h.clock.fire(5 * time.Second)
	select {
	case <-h.reminders:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reminder")
	}

	// Both the nudge and the reminder prompts carry the work the user
	// drifted away from, never the distraction.
	assert.Contains(t, h.textGen.lastPrompt(), "quarterly_report")
	for _, prompt := range h.textGen.allPrompts() {
		assert.NotContains(t, prompt, "CatVideoCompilation")
	}
}

func TestSessionRunner_NudgeGenerationOffMonitorLoop(t *testing.T) {
	h := newSessionHarness(t)
	h.textGen.gate = make(chan struct{})
	h.classy.queue = []domain.Classification{
		{Label: domain.LabelDistracted, Reason: "video playing"},
	}

	h.clock.fire(time.Second)
	assert.Equal(t, domain.StateDistracted, h.waitState(t))

	// Generation is parked on the gate; the monitor loop must keep
	// serving polls in the meantime.
	polled := make(chan struct{})
	go func() {
		h.clock.fire(time.Second)
		close(polled)
	}()
	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("poll tick starved by nudge generation")
	}

	close(h.textGen.gate)
	select {
	case result := <-h.nudges:
		assert.Equal(t, validNudgeMsg, result.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for nudge")
	}

	record := h.finish(t)
	assert.Equal(t, 1, record.Nudges)
}

func TestSessionRunner_ReminderMessageWithoutSample(t *testing.T) {
	textGen := &fakeTextGen{response: "Your attention score is decreasing, you can try to write the opening paragraph now"}
	clock := newFakeClock()
	runner := NewSessionRunner(
		SessionConfig{
			Subject:    "write an essay",
			Cache:      entitycache.DefaultConfig(),
			Nudge:      nudge.DefaultConfig(),
			Stabilizer: stabilizer.DefaultConfig(),
		},
		SessionDeps{
			TextGen: textGen,
			Clock:   clock,
			Logger:  zap.NewNop(),
		},
		SessionEvents{},
	)

	msg := runner.ReminderMessage(context.Background())
	assert.Equal(t, "Your attention score is decreasing, you can try to write the opening paragraph now", msg)
}

func TestSessionRunner_CurrentMetaFromLastSample(t *testing.T) {
	clock := newFakeClock()
	runner := NewSessionRunner(
		SessionConfig{
			Subject:    "task",
			Cache:      entitycache.DefaultConfig(),
			Nudge:      nudge.DefaultConfig(),
			Stabilizer: stabilizer.DefaultConfig(),
		},
		SessionDeps{Clock: clock, Logger: zap.NewNop()},
		SessionEvents{},
	)

	assert.Equal(t, &domain.CurrentMeta{}, runner.currentMeta())

	runner.recordSample(&domain.Sample{
		AppID:     "com.google.Chrome",
		Title:     "docs",
		URLDomain: "docs.google.com",
		Timestamp: clock.Now(),
	})
	meta := runner.currentMeta()
	assert.Equal(t, "com.google.Chrome", meta.AppID)
	assert.Equal(t, "docs.google.com", meta.URLDomain)
}
