// Package stabilizer turns noisy per-screenshot classifications into a
// stable user focus state with idle detection and escalation.
package stabilizer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

// Config holds the monitoring loop timings.
type Config struct {
	PollInterval      time.Duration // activity poll cadence
	AnalysisCooldown  time.Duration // min gap between classifications
	ClassifyTimeout   time.Duration // per-classification deadline
	IdleCheckInterval time.Duration // idle-entry check cadence
	WindowStillAfter  time.Duration // no window change before idle applies
	IdleInputAfter    time.Duration // input idle threshold to enter Idle
	IdleResumeBelow   time.Duration // input idle threshold to exit Idle
	EscalateAfter     time.Duration // continuous semi-distraction before escalation
	ReminderInterval  time.Duration // reminder cadence while distracted
	HistorySize       int           // classification labels kept for consensus
}

// DefaultConfig returns the standard monitoring timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:      time.Second,
		AnalysisCooldown:  2 * time.Second,
		ClassifyTimeout:   30 * time.Second,
		IdleCheckInterval: 30 * time.Second,
		WindowStillAfter:  60 * time.Second,
		IdleInputAfter:    30 * time.Second,
		IdleResumeBelow:   3 * time.Second,
		EscalateAfter:     60 * time.Second,
		ReminderInterval:  5 * time.Second,
		HistorySize:       3,
	}
}

// Deps are the collaborators the monitor drives.
type Deps struct {
	Capturer   domain.ContextCapturer
	Screens    domain.ScreenCapturer
	Redactor   domain.Redactor
	Classifier domain.FocusClassifier
	Idle       domain.IdleMonitor
	Clock      domain.Clock
	Logger     *zap.Logger
}

// Callbacks surface monitor events to the host. All callbacks fire
// from the monitor loop goroutine and never after Run returns.
type Callbacks struct {
	OnStateChange  func(state domain.FocusState, reason string)
	OnAnalysis     func(ev domain.AnalysisEvent)
	OnWindowChange func(previous, current string)
	OnReminder     func(message string)
}

// MessageSource supplies reminder text while the user is distracted.
type MessageSource interface {
	// ReminderMessage returns the coaching message for one reminder.
	ReminderMessage(ctx context.Context) string
}

type classifyResult struct {
	classification *domain.Classification
	artifactPath   string
	err            error
}

// Monitor is the focus state machine. A single loop goroutine owns all
// mutable state; classification and reminder generation run in
// short-lived goroutines feeding channels back into the loop.
type Monitor struct {
	cfg         Config
	deps        Deps
	cb          Callbacks
	msgSource   MessageSource
	workContext string

	mu    sync.Mutex
	state domain.FocusState

	// loop-owned state
	lastWindow         string
	lastWindowChangeAt time.Time
	lastAnalysisAt     time.Time
	inFlight           bool
	results            chan classifyResult
	reminderInFlight   bool
	reminderMsgs       chan string
	history            []domain.FocusLabel
	semiSince          time.Time
	lastOnTaskArtifact string
}

// New creates a monitor for the given work context.
func New(cfg Config, deps Deps, cb Callbacks, msgSource MessageSource, workContext string) *Monitor {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	return &Monitor{
		cfg:          cfg,
		deps:         deps,
		cb:           cb,
		msgSource:    msgSource,
		workContext:  workContext,
		state:        domain.StateDetecting,
		results:      make(chan classifyResult, 1),
		reminderMsgs: make(chan string, 1),
	}
}

// State returns the current stabilized state.
func (m *Monitor) State() domain.FocusState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastOnTaskArtifact returns the screenshot path of the most recent
// on-task observation, or "".
func (m *Monitor) LastOnTaskArtifact() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOnTaskArtifact
}

// Run drives the monitoring loop until ctx is cancelled. All tickers
// are stopped before returning.
func (m *Monitor) Run(ctx context.Context) error {
	m.lastWindowChangeAt = m.deps.Clock.Now()

	pollTicker := m.deps.Clock.NewTicker(m.cfg.PollInterval)
	defer pollTicker.Stop()
	idleTicker := m.deps.Clock.NewTicker(m.cfg.IdleCheckInterval)
	defer idleTicker.Stop()
	reminderTicker := m.deps.Clock.NewTicker(m.cfg.ReminderInterval)
	defer reminderTicker.Stop()

	m.deps.Logger.Info("focus monitor started",
		zap.String("work_context", m.workContext))

	for {
		select {
		case <-ctx.Done():
			m.deps.Logger.Info("focus monitor stopped")
			return ctx.Err()
		case <-pollTicker.C():
			m.pollOnce(ctx)
		case <-idleTicker.C():
			m.idleEntryCheck(ctx)
		case <-reminderTicker.C():
			m.reminderTick(ctx)
		case res := <-m.results:
			m.handleResult(res)
		case msg := <-m.reminderMsgs:
			m.handleReminderMsg(msg)
		}
	}
}

// pollOnce detects window changes, runs the escalation timer, and
// checks for idle exit while idle.
func (m *Monitor) pollOnce(ctx context.Context) {
	now := m.deps.Clock.Now()

	if m.State() == domain.StateIdle {
		m.idleExitCheck(ctx)
	}

	if m.State() == domain.StateSemiDistracted && !m.semiSince.IsZero() &&
		now.Sub(m.semiSince) >= m.cfg.EscalateAfter {
		m.semiSince = time.Time{}
		m.transition(domain.StateDistracted, "semi-distracted for over a minute")
	}

	info, err := m.deps.Capturer.CaptureActiveWindow(ctx)
	if err != nil {
		m.deps.Logger.Warn("window poll failed", zap.Error(err))
		return
	}
	current := windowSignature(info)
	if current == m.lastWindow {
		return
	}

	previous := m.lastWindow
	m.lastWindow = current
	m.lastWindowChangeAt = now
	m.deps.Logger.Debug("window changed",
		zap.String("previous", previous),
		zap.String("current", current))
	if m.cb.OnWindowChange != nil {
		m.cb.OnWindowChange(previous, current)
	}

	m.maybeClassify(ctx, now)
}

// maybeClassify launches a single-flight classification respecting the
// analysis cooldown.
func (m *Monitor) maybeClassify(ctx context.Context, now time.Time) {
	if m.workContext == "" {
		return
	}
	if m.inFlight {
		m.deps.Logger.Debug("classification already in flight, skipping")
		return
	}
	if !m.lastAnalysisAt.IsZero() && now.Sub(m.lastAnalysisAt) < m.cfg.AnalysisCooldown {
		m.deps.Logger.Debug("analysis cooldown active, skipping")
		return
	}
	m.inFlight = true
	m.lastAnalysisAt = now
	go m.classify(ctx)
}

// classify captures, redacts, and classifies one screenshot off the
// loop goroutine.
func (m *Monitor) classify(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.ClassifyTimeout)
	defer cancel()

	res := func() classifyResult {
		artifact, err := m.deps.Screens.Capture(callCtx)
		if err != nil {
			return classifyResult{err: err}
		}
		artifact, err = m.deps.Redactor.RedactSensitiveRegions(callCtx, artifact)
		if err != nil {
			return classifyResult{err: err}
		}
		cls, err := m.deps.Classifier.ClassifyFocus(callCtx, artifact, m.workContext)
		if err != nil {
			return classifyResult{err: err}
		}
		return classifyResult{classification: cls, artifactPath: artifact.Path}
	}()

	select {
	case m.results <- res:
	case <-ctx.Done():
	}
}

// handleResult folds one classification into the state machine.
// Failures keep the previous state.
func (m *Monitor) handleResult(res classifyResult) {
	m.inFlight = false

	if res.err != nil {
		m.deps.Logger.Warn("classification failed", zap.Error(res.err))
		return
	}

	label := res.classification.Label
	m.history = append(m.history, label)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[1:]
	}
	consensus := 0
	for _, l := range m.history {
		if l == label {
			consensus++
		}
	}

	if m.cb.OnAnalysis != nil {
		m.cb.OnAnalysis(domain.AnalysisEvent{
			Label:        label,
			Reason:       res.classification.Reason,
			Consensus:    consensus,
			ArtifactPath: res.artifactPath,
			At:           m.deps.Clock.Now(),
		})
	}

	switch label {
	case domain.LabelFocused:
		m.semiSince = time.Time{}
		m.setLastOnTask(res.artifactPath)
		m.transition(domain.StateFocused, res.classification.Reason)
	case domain.LabelSemiDistracted:
		if m.semiSince.IsZero() {
			m.semiSince = m.deps.Clock.Now()
		}
		m.setLastOnTask(res.artifactPath)
		m.transition(domain.StateSemiDistracted, res.classification.Reason)
	case domain.LabelDistracted:
		m.semiSince = time.Time{}
		m.transition(domain.StateDistracted, res.classification.Reason)
	default:
		// Unclear verdicts keep the previous state.
		m.deps.Logger.Debug("unclear classification retained previous state",
			zap.String("reason", res.classification.Reason))
	}
}

// idleEntryCheck enters Idle after a still window plus no input.
func (m *Monitor) idleEntryCheck(ctx context.Context) {
	if m.State() == domain.StateIdle {
		return
	}
	now := m.deps.Clock.Now()
	if now.Sub(m.lastWindowChangeAt) < m.cfg.WindowStillAfter {
		return
	}
	idle, err := m.deps.Idle.IdleSeconds(ctx)
	if err != nil {
		m.deps.Logger.Warn("idle read failed", zap.Error(err))
		return
	}
	if time.Duration(idle*float64(time.Second)) >= m.cfg.IdleInputAfter {
		m.semiSince = time.Time{}
		m.transition(domain.StateIdle, "no window change for a minute and no recent input")
	}
}

// idleExitCheck leaves Idle as soon as input resumes.
func (m *Monitor) idleExitCheck(ctx context.Context) {
	idle, err := m.deps.Idle.IdleSeconds(ctx)
	if err != nil {
		m.deps.Logger.Warn("idle read failed", zap.Error(err))
		return
	}
	if time.Duration(idle*float64(time.Second)) <= m.cfg.IdleResumeBelow {
		m.lastWindowChangeAt = m.deps.Clock.Now()
		m.transition(domain.StateFocused, "input resumed")
	}
}

// reminderTick starts one reminder generation while the user is away
// from their task. Generation can take several model round trips, so
// it runs off the loop goroutine and reports back on reminderMsgs.
func (m *Monitor) reminderTick(ctx context.Context) {
	state := m.State()
	if state != domain.StateDistracted && state != domain.StateIdle {
		return
	}
	if m.cb.OnReminder == nil || m.reminderInFlight {
		return
	}
	m.reminderInFlight = true
	go func() {
		message := ""
		if m.msgSource != nil {
			message = m.msgSource.ReminderMessage(ctx)
		}
		select {
		case m.reminderMsgs <- message:
		case <-ctx.Done():
		}
	}()
}

// handleReminderMsg delivers a generated reminder, unless the user got
// back on task while it was being generated.
func (m *Monitor) handleReminderMsg(message string) {
	m.reminderInFlight = false
	state := m.State()
	if state != domain.StateDistracted && state != domain.StateIdle {
		return
	}
	m.cb.OnReminder(message)
}

func (m *Monitor) transition(state domain.FocusState, reason string) {
	m.mu.Lock()
	previous := m.state
	if previous == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	m.deps.Logger.Info("focus state changed",
		zap.String("from", string(previous)),
		zap.String("to", string(state)),
		zap.String("reason", reason))
	if m.cb.OnStateChange != nil {
		m.cb.OnStateChange(state, reason)
	}
}

func (m *Monitor) setLastOnTask(path string) {
	if path == "" {
		return
	}
	m.mu.Lock()
	m.lastOnTaskArtifact = path
	m.mu.Unlock()
}

// windowSignature builds the change-detection key for a capture.
func windowSignature(info *domain.WindowContext) string {
	if info == nil {
		return ""
	}
	return info.AppID + "|" + info.Title
}
