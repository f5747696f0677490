package nudge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

const systemPrompt = `You output exactly ONE sentence in this format:
Your attention score is decreasing, you can try to [ACTION]
[ACTION] <= 15 words and, when CONFIDENCE is HIGH or MEDIUM, MUST include at least ONE exact phrase from ENTITIES.
Use concrete doing verbs only: add, cite, define, compute, refactor, write, test, summarize, compare, outline, link, format.
Forbidden verbs/phrases: think about, consider, brainstorm, plan, continue, improve, work on, review, revisit.
Do NOT mention images, screenshots, analysis, user, or document. No explanations. No quotes. No extra text.`

// Config holds generator tuning parameters.
type Config struct {
	Cooldown        time.Duration
	MaxPerSession   int
	MaxRetries      int
	GenerateTimeout time.Duration
}

// DefaultConfig returns the standard generator parameters.
func DefaultConfig() Config {
	return Config{
		Cooldown:        4 * time.Minute,
		MaxPerSession:   1,
		MaxRetries:      2,
		GenerateTimeout: 10 * time.Second,
	}
}

// ContextMatcher scores current activity against recent samples.
// Satisfied by *entitycache.Cache.
type ContextMatcher interface {
	MatchConfidence(meta *domain.CurrentMeta) domain.ContextMatch
}

// Stats reports generator throttle state.
type Stats struct {
	SessionCount   int
	MaxPerSession  int
	CanGenerateNow bool
	SinceLastNudge time.Duration // zero when no nudge was generated yet
	Cooldown       time.Duration
}

// Generator produces validated coaching messages with cooldown and
// per-session throttling.
type Generator struct {
	cfg    Config
	gen    domain.TextGenerator
	clock  domain.Clock
	logger *zap.Logger

	mu            sync.Mutex
	lastNudgeTime time.Time
	sessionCount  int
}

// NewGenerator creates a generator backed by the given text model.
func NewGenerator(cfg Config, gen domain.TextGenerator, clock domain.Clock, logger *zap.Logger) *Generator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultConfig().GenerateTimeout
	}
	return &Generator{cfg: cfg, gen: gen, clock: clock, logger: logger}
}

// Generate produces one nudge for the current context, or nil when
// blocked by cooldown or the session cap. Generation is retried until
// a candidate passes validation; the fallback message is used when
// every attempt fails.
func (g *Generator) Generate(ctx context.Context, workContext string, cache ContextMatcher, meta *domain.CurrentMeta) *domain.NudgeResult {
	g.mu.Lock()
	if !g.canGenerateLocked() {
		g.mu.Unlock()
		g.logger.Info("nudge blocked by cooldown or session limit")
		return nil
	}
	g.mu.Unlock()

	match := cache.MatchConfidence(meta)
	var entities []string
	var snippet string
	if match.Sample != nil {
		entities = match.Sample.Entities
		snippet = match.Sample.RecentSnippet
	}

	result := g.attempt(ctx, userPayload(workContext, match.Confidence, entities, snippet), entities, match.Confidence)

	g.mu.Lock()
	g.lastNudgeTime = g.clock.Now()
	g.sessionCount++
	g.mu.Unlock()

	g.logger.Info("nudge generated",
		zap.String("confidence", string(result.Confidence)),
		zap.Bool("fallback", result.Fallback),
		zap.Int("attempts", result.Attempts))

	return result
}

// ForceGenerate bypasses throttling for one generation, restoring the
// session counter afterwards.
func (g *Generator) ForceGenerate(ctx context.Context, workContext string, cache ContextMatcher, meta *domain.CurrentMeta) *domain.NudgeResult {
	g.mu.Lock()
	savedCooldown := g.cfg.Cooldown
	savedCount := g.sessionCount
	g.cfg.Cooldown = 0
	g.sessionCount = 0
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.cfg.Cooldown = savedCooldown
		g.sessionCount = savedCount
		g.mu.Unlock()
	}()

	return g.Generate(ctx, workContext, cache, meta)
}

// Continuation builds a reminder message from the last on-task sample.
// It is not throttled and does not count toward the session cap.
func (g *Generator) Continuation(ctx context.Context, workContext string, sample *domain.Sample) *domain.NudgeResult {
	confidence := domain.ConfidenceLow
	var entities []string
	var snippet string
	if sample != nil && len(sample.Entities) > 0 {
		confidence = domain.ConfidenceMedium
		entities = sample.Entities
		snippet = sample.RecentSnippet
	}

	payload := "The user drifted away from their task. Based on the last on-task context, suggest the immediate next step.\n" +
		userPayload(workContext, confidence, entities, snippet)

	return g.attempt(ctx, payload, entities, confidence)
}

// ResetSession clears the throttle counters.
func (g *Generator) ResetSession() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionCount = 0
	g.lastNudgeTime = time.Time{}
	g.logger.Debug("nudge session reset")
}

// GetStats returns current throttle state.
func (g *Generator) GetStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	var since time.Duration
	if !g.lastNudgeTime.IsZero() {
		since = g.clock.Now().Sub(g.lastNudgeTime)
	}
	return Stats{
		SessionCount:   g.sessionCount,
		MaxPerSession:  g.cfg.MaxPerSession,
		CanGenerateNow: g.canGenerateLocked(),
		SinceLastNudge: since,
		Cooldown:       g.cfg.Cooldown,
	}
}

// attempt runs the bounded retry loop and falls back when exhausted.
func (g *Generator) attempt(ctx context.Context, payload string, entities []string, confidence domain.Confidence) *domain.NudgeResult {
	attempts := 0
	for attempts <= g.cfg.MaxRetries {
		attempts++

		generated, err := g.generateOnce(ctx, payload)
		if err != nil {
			g.logger.Warn("generation attempt failed",
				zap.Int("attempt", attempts),
				zap.Error(err))
			continue
		}

		check := DetailedPostCheck(generated, entities, confidence)
		if check.Passed {
			return &domain.NudgeResult{
				Message:    generated,
				Attempts:   attempts,
				Confidence: confidence,
				Entities:   entities,
			}
		}
		g.logger.Warn("generated nudge failed validation",
			zap.Int("attempt", attempts),
			zap.Strings("issues", check.Issues))
	}

	return &domain.NudgeResult{
		Message:    FallbackMessage(),
		Fallback:   true,
		Attempts:   attempts,
		Confidence: confidence,
		Entities:   entities,
	}
}

// generateOnce calls the model with a per-attempt timeout and cleans
// up the raw output.
func (g *Generator) generateOnce(ctx context.Context, payload string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.GenerateTimeout)
	defer cancel()

	raw, err := g.gen.GenerateText(callCtx, systemPrompt, payload)
	if err != nil {
		return "", err
	}
	return cleanResponse(raw), nil
}

// cleanResponse strips wrapping quotes and keeps only the first line.
func cleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func userPayload(workContext string, confidence domain.Confidence, entities []string, snippet string) string {
	if entities == nil {
		entities = []string{}
	}
	encoded, _ := json.Marshal(entities)
	return "Work context: " + workContext + "\n" +
		"CONFIDENCE: " + strings.ToUpper(string(confidence)) + "\n" +
		"ENTITIES: " + string(encoded) + "\n" +
		"RECENT_SNIPPET: " + snippet
}

func (g *Generator) canGenerateLocked() bool {
	if g.sessionCount >= g.cfg.MaxPerSession {
		return false
	}
	if !g.lastNudgeTime.IsZero() && g.clock.Now().Sub(g.lastNudgeTime) < g.cfg.Cooldown {
		return false
	}
	return true
}
