// Package sampler takes lightweight context samples of the user's
// current activity without screenshots.
package sampler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

const maxSnippetLen = 200

// Config holds sampler tuning parameters.
type Config struct {
	HeartbeatInterval time.Duration
}

// DefaultConfig returns the standard sampler parameters.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 7 * time.Minute,
	}
}

// Sampler captures window context and distills it into samples.
// A started sampler re-samples on a heartbeat and hands each sample
// to the onSample callback.
type Sampler struct {
	cfg      Config
	capturer domain.ContextCapturer
	clock    domain.Clock
	logger   *zap.Logger
	onSample func(*domain.Sample)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sampler. onSample may be nil when heartbeat delivery
// is not needed (one-shot use).
func New(cfg Config, capturer domain.ContextCapturer, clock domain.Clock, logger *zap.Logger, onSample func(*domain.Sample)) *Sampler {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}
	return &Sampler{
		cfg:      cfg,
		capturer: capturer,
		clock:    clock,
		logger:   logger,
		onSample: onSample,
	}
}

// Start launches the heartbeat loop. Safe to call once per sampler.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.heartbeatLoop(loopCtx)
	s.logger.Info("context sampler started",
		zap.Duration("heartbeat", s.cfg.HeartbeatInterval))
}

// Stop halts the heartbeat loop and waits for it to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("context sampler stopped")
}

func (s *Sampler) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			sample := s.Sample(ctx, domain.TriggerHeartbeat)
			if sample != nil && s.onSample != nil {
				s.onSample(sample)
			}
		}
	}
}

// Sample captures the frontmost window and distills it into a sample.
// Any failure is swallowed and reported as a nil sample.
func (s *Sampler) Sample(ctx context.Context, trigger domain.SampleTrigger) *domain.Sample {
	info, err := s.capturer.CaptureActiveWindow(ctx)
	if err != nil {
		s.logger.Warn("context capture failed",
			zap.String("trigger", string(trigger)),
			zap.Error(err))
		return nil
	}
	if info == nil || (info.AppID == "" && info.AppName == "") {
		return nil
	}

	appID := info.AppID
	if appID == "" {
		appID = info.AppName
	}

	docID := info.DocPath
	if docID == "" && domain.IsEditorApp(appID) {
		docID = DocPathFromTitle(info.Title)
	}
	if docID == "" {
		docID = info.URL
	}

	sample := &domain.Sample{
		AppID:         appID,
		Title:         info.Title,
		URLDomain:     info.URLDomain,
		DocID:         docID,
		Entities:      extractEntities(info),
		RecentSnippet: snippet(info),
		Trigger:       trigger,
		Timestamp:     s.clock.Now(),
	}

	s.logger.Debug("context sampled",
		zap.String("trigger", string(trigger)),
		zap.String("app_id", sample.AppID),
		zap.Int("entities", len(sample.Entities)))

	return sample
}

func snippet(info *domain.WindowContext) string {
	text := info.OnScreenText
	if text == "" {
		text = info.Title
	}
	if len(text) > maxSnippetLen {
		text = text[:maxSnippetLen]
	}
	return text
}
