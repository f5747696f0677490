// Package usecase composes the sampling, caching, monitoring, and
// nudge components into focus sessions.
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
	"github.com/zacteqye72-art/project-focus-app/internal/entitycache"
	"github.com/zacteqye72-art/project-focus-app/internal/nudge"
	"github.com/zacteqye72-art/project-focus-app/internal/sampler"
	"github.com/zacteqye72-art/project-focus-app/internal/stabilizer"
)

// SessionConfig describes one focus session.
type SessionConfig struct {
	Subject  string        // the user's stated work goal
	Duration time.Duration // zero means run until the context is cancelled

	Sampler    sampler.Config
	Cache      entitycache.Config
	Nudge      nudge.Config
	Stabilizer stabilizer.Config
}

// SessionDeps are the collaborators a session drives.
type SessionDeps struct {
	Capturer   domain.ContextCapturer
	Screens    domain.ScreenCapturer
	Redactor   domain.Redactor
	Classifier domain.FocusClassifier
	Idle       domain.IdleMonitor
	TextGen    domain.TextGenerator
	Store      domain.SessionStore // nil disables history persistence
	Clock      domain.Clock
	Logger     *zap.Logger
}

// SessionEvents surface session activity to the host. OnNudge fires
// from a generation goroutine; the other callbacks fire from the
// monitor loop goroutine.
type SessionEvents struct {
	OnStateChange func(state domain.FocusState, reason string)
	OnNudge       func(result *domain.NudgeResult)
	OnReminder    func(message string)
	OnAnalysis    func(ev domain.AnalysisEvent)
}

// SessionRunner owns one focus session: it starts the sampler, runs
// the focus monitor, generates a nudge when the user becomes
// distracted, and writes a session record when the session ends.
type SessionRunner struct {
	cfg    SessionConfig
	deps   SessionDeps
	events SessionEvents

	cache     *entitycache.Cache
	generator *nudge.Generator
	sampler   *sampler.Sampler
	monitor   *stabilizer.Monitor

	genCtx context.Context // set in Run, bounds background generation
	wg     sync.WaitGroup

	mu         sync.Mutex
	lastOnTask *domain.Sample // latest sample confirmed on-task
	pending    *domain.Sample // milestone sample awaiting its verdict
	reminders  int
	nudges     int
}

// NewSessionRunner wires up the session pipeline for the given subject.
func NewSessionRunner(cfg SessionConfig, deps SessionDeps, events SessionEvents) *SessionRunner {
	r := &SessionRunner{cfg: cfg, deps: deps, events: events}

	r.cache = entitycache.New(cfg.Cache, deps.Clock, deps.Logger)
	r.generator = nudge.NewGenerator(cfg.Nudge, deps.TextGen, deps.Clock, deps.Logger)
	r.sampler = sampler.New(cfg.Sampler, deps.Capturer, deps.Clock, deps.Logger, r.recordSample)

	monitorDeps := stabilizer.Deps{
		Capturer:   deps.Capturer,
		Screens:    deps.Screens,
		Redactor:   deps.Redactor,
		Classifier: deps.Classifier,
		Idle:       deps.Idle,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	callbacks := stabilizer.Callbacks{
		OnStateChange:  r.handleStateChange,
		OnAnalysis:     r.handleAnalysis,
		OnWindowChange: r.handleWindowChange,
		OnReminder:     r.handleReminder,
	}
	r.monitor = stabilizer.New(cfg.Stabilizer, monitorDeps, callbacks, r, cfg.Subject)

	return r
}

// Run executes the session until the duration elapses or ctx is
// cancelled, then cleans up screenshots and persists the record.
func (r *SessionRunner) Run(ctx context.Context) (domain.SessionRecord, error) {
	record := domain.SessionRecord{
		ID:        uuid.NewString(),
		Subject:   r.cfg.Subject,
		StartedAt: r.deps.Clock.Now(),
	}

	runCtx := ctx
	if r.cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Duration)
		defer cancel()
	}
	r.genCtx = runCtx

	r.deps.Logger.Info("focus session started",
		zap.String("session_id", record.ID),
		zap.String("subject", record.Subject),
		zap.Duration("duration", r.cfg.Duration))

	// Seed the cache so the first nudge has context to match against.
	if sample := r.sampler.Sample(runCtx, domain.TriggerManual); sample != nil {
		r.recordSample(sample)
	}
	r.sampler.Start(runCtx)

	err := r.monitor.Run(runCtx)
	r.sampler.Stop()
	r.wg.Wait()

	if cleanupErr := r.deps.Screens.Cleanup(); cleanupErr != nil {
		r.deps.Logger.Warn("screenshot cleanup failed", zap.Error(cleanupErr))
	}

	record.EndedAt = r.deps.Clock.Now()
	record.Minutes = record.EndedAt.Sub(record.StartedAt).Minutes()
	r.mu.Lock()
	record.Reminders = r.reminders
	record.Nudges = r.nudges
	r.mu.Unlock()

	if r.deps.Store != nil {
		if saveErr := r.deps.Store.AddSession(record); saveErr != nil {
			r.deps.Logger.Warn("failed to persist session record", zap.Error(saveErr))
		}
	}

	r.deps.Logger.Info("focus session ended",
		zap.String("session_id", record.ID),
		zap.Float64("minutes", record.Minutes),
		zap.Int("reminders", record.Reminders),
		zap.Int("nudges", record.Nudges))

	// Reaching the planned duration is a normal session end.
	if err == context.DeadlineExceeded || err == context.Canceled {
		err = nil
	}
	return record, err
}

// State returns the current stabilized focus state.
func (r *SessionRunner) State() domain.FocusState {
	return r.monitor.State()
}

// ReminderMessage implements stabilizer.MessageSource using the
// continuation generator seeded with the last on-task sample.
func (r *SessionRunner) ReminderMessage(ctx context.Context) string {
	r.mu.Lock()
	sample := r.lastOnTask
	r.mu.Unlock()

	result := r.generator.Continuation(ctx, r.cfg.Subject, sample)
	if result == nil {
		return nudge.FallbackMessage()
	}
	return result.Message
}

// recordSample routes one sample into the on-task memory. Milestone
// samples describe a window whose verdict is still pending, so they
// are parked until the classification confirms the user stayed on
// task. Everything else counts only while the user is on task.
func (r *SessionRunner) recordSample(sample *domain.Sample) {
	if sample == nil {
		return
	}
	if sample.Trigger == domain.TriggerMilestone {
		r.mu.Lock()
		r.pending = sample
		r.mu.Unlock()
		return
	}
	switch r.monitor.State() {
	case domain.StateDistracted, domain.StateIdle:
		return
	}
	r.commitSample(sample)
}

// commitSample accepts a sample as on-task context.
func (r *SessionRunner) commitSample(sample *domain.Sample) {
	r.cache.AddSample(sample)
	r.mu.Lock()
	r.lastOnTask = sample
	r.mu.Unlock()
}

func (r *SessionRunner) handleStateChange(state domain.FocusState, reason string) {
	if r.events.OnStateChange != nil {
		r.events.OnStateChange(state, reason)
	}
	if state != domain.StateDistracted {
		return
	}

	meta := r.currentMeta()
	ctx := r.genCtx
	if ctx == nil {
		ctx = context.Background()
	}

	// Generation retries model calls for many seconds; keep that off
	// the monitor loop so polling and idle checks stay on schedule.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		result := r.generator.Generate(ctx, r.cfg.Subject, r.cache, meta)
		if result == nil {
			return
		}
		r.mu.Lock()
		r.nudges++
		r.mu.Unlock()
		if r.events.OnNudge != nil {
			r.events.OnNudge(result)
		}
	}()
}

// handleAnalysis resolves the pending milestone sample: an on-task
// verdict commits it, anything else discards it so a distracting
// window never becomes the continuation context.
func (r *SessionRunner) handleAnalysis(ev domain.AnalysisEvent) {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	switch ev.Label {
	case domain.LabelFocused, domain.LabelSemiDistracted:
		if pending != nil {
			r.commitSample(pending)
		}
	}

	if r.events.OnAnalysis != nil {
		r.events.OnAnalysis(ev)
	}
}

// handleWindowChange takes a milestone sample so the cache tracks the
// context the user just switched to.
func (r *SessionRunner) handleWindowChange(previous, current string) {
	if sample := r.sampler.Sample(context.Background(), domain.TriggerMilestone); sample != nil {
		r.recordSample(sample)
	}
}

func (r *SessionRunner) handleReminder(message string) {
	r.mu.Lock()
	r.reminders++
	r.mu.Unlock()
	if r.events.OnReminder != nil {
		r.events.OnReminder(message)
	}
}

// currentMeta projects the last on-task sample into matcher input.
func (r *SessionRunner) currentMeta() *domain.CurrentMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastOnTask == nil {
		return &domain.CurrentMeta{}
	}
	return &domain.CurrentMeta{
		AppID:     r.lastOnTask.AppID,
		Title:     r.lastOnTask.Title,
		URLDomain: r.lastOnTask.URLDomain,
	}
}

var _ stabilizer.MessageSource = (*SessionRunner)(nil)
