// Package entitycache keeps a ring of recent context samples and scores
// how well current activity matches them.
package entitycache

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

const maxMergedEntities = 12

var tokenRe = regexp.MustCompile(`\b\w+\b`)

// Config holds cache tuning parameters.
type Config struct {
	RingSize         int
	ConfidenceHigh   float64
	ConfidenceMedium float64
	MaxAge           time.Duration
}

// DefaultConfig returns the standard cache parameters.
func DefaultConfig() Config {
	return Config{
		RingSize:         8,
		ConfidenceHigh:   0.7,
		ConfidenceMedium: 0.4,
		MaxAge:           12 * time.Minute,
	}
}

// Stats summarizes the cache contents.
type Stats struct {
	SampleCount   int
	TotalEntities int
	UniqueApps    int
	OldestAge     time.Duration
}

// Cache is a mutex-guarded ring buffer of samples, newest first.
// It owns its samples; callers receive copies.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	clock   domain.Clock
	logger  *zap.Logger
	samples []domain.Sample
}

// New creates an empty cache.
func New(cfg Config, clock domain.Clock, logger *zap.Logger) *Cache {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultConfig().RingSize
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig().MaxAge
	}
	return &Cache{cfg: cfg, clock: clock, logger: logger}
}

// AddSample inserts a sample, merging it into an existing entry when it
// comes from the same source (same app plus similar title, same domain,
// or same document).
func (c *Cache) AddSample(sample *domain.Sample) {
	if sample == nil || sample.AppID == "" {
		c.logger.Warn("invalid sample provided to cache")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.findSimilarLocked(sample); i != -1 {
		merged := *sample
		merged.Entities = mergeEntities(c.samples[i].Entities, sample.Entities)
		merged.MergedCount = c.samples[i].MergedCount + 1
		c.samples[i] = merged
		c.logger.Debug("merged sample with existing entry",
			zap.String("app_id", merged.AppID),
			zap.Int("entities", len(merged.Entities)))
	} else {
		c.samples = append([]domain.Sample{*sample}, c.samples...)
		if len(c.samples) > c.cfg.RingSize {
			c.samples = c.samples[:c.cfg.RingSize]
		}
		c.logger.Debug("added new sample",
			zap.String("app_id", sample.AppID),
			zap.Int("count", len(c.samples)))
	}

	c.cleanStaleLocked()
}

// MostRecent returns a copy of the newest non-stale sample, or nil.
func (c *Cache) MostRecent() *domain.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanStaleLocked()
	if len(c.samples) == 0 {
		return nil
	}
	s := c.samples[0]
	return &s
}

// AllRecent returns copies of all non-stale samples, newest first.
func (c *Cache) AllRecent() []domain.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanStaleLocked()
	out := make([]domain.Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// MatchConfidence scores current activity against the most recent
// sample. A stale most-recent sample forces low confidence.
func (c *Cache) MatchConfidence(meta *domain.CurrentMeta) domain.ContextMatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	if meta == nil || len(c.samples) == 0 {
		return domain.ContextMatch{Confidence: domain.ConfidenceLow}
	}

	recent := c.samples[0]
	if c.clock.Now().Sub(recent.Timestamp) >= c.cfg.MaxAge {
		return domain.ContextMatch{Confidence: domain.ConfidenceLow, Sample: &recent}
	}

	score := c.similarityScore(meta, &recent)

	confidence := domain.ConfidenceLow
	switch {
	case score >= c.cfg.ConfidenceHigh:
		confidence = domain.ConfidenceHigh
	case score >= c.cfg.ConfidenceMedium:
		confidence = domain.ConfidenceMedium
	}

	c.logger.Debug("matched confidence",
		zap.String("confidence", string(confidence)),
		zap.Float64("score", score))

	return domain.ContextMatch{Confidence: confidence, Score: score, Sample: &recent}
}

// Clear drops all cached samples.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = nil
}

// GetStats returns cache statistics after purging stale entries.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanStaleLocked()

	total := 0
	apps := make(map[string]struct{})
	for _, s := range c.samples {
		total += len(s.Entities)
		apps[s.AppID] = struct{}{}
	}
	var oldest time.Duration
	if len(c.samples) > 0 {
		oldest = c.clock.Now().Sub(c.samples[len(c.samples)-1].Timestamp)
	}
	return Stats{
		SampleCount:   len(c.samples),
		TotalEntities: total,
		UniqueApps:    len(apps),
		OldestAge:     oldest,
	}
}

// similarityScore weighs app match 0.5, title Jaccard 0.3, domain
// match 0.2, clamped to 1.0.
func (c *Cache) similarityScore(current *domain.CurrentMeta, sample *domain.Sample) float64 {
	score := 0.0
	if current.AppID == sample.AppID {
		score += 0.5
	}
	if current.Title != "" && sample.Title != "" {
		score += 0.3 * textSimilarity(current.Title, sample.Title)
	}
	if current.URLDomain != "" && sample.URLDomain != "" && current.URLDomain == sample.URLDomain {
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (c *Cache) findSimilarLocked(sample *domain.Sample) int {
	for i, existing := range c.samples {
		if existing.AppID != sample.AppID {
			continue
		}
		if sample.Title != "" && existing.Title != "" {
			if textSimilarity(sample.Title, existing.Title) > 0.7 {
				return i
			}
		}
		if sample.URLDomain != "" && existing.URLDomain != "" {
			if sample.URLDomain == existing.URLDomain {
				return i
			}
			continue
		}
		if sample.DocID != "" && existing.DocID != "" && sample.DocID == existing.DocID {
			return i
		}
	}
	return -1
}

func (c *Cache) cleanStaleLocked() {
	now := c.clock.Now()
	kept := c.samples[:0]
	for _, s := range c.samples {
		if now.Sub(s.Timestamp) < c.cfg.MaxAge {
			kept = append(kept, s)
		}
	}
	if removed := len(c.samples) - len(kept); removed > 0 {
		c.logger.Debug("cleaned stale cache entries", zap.Int("removed", removed))
	}
	c.samples = kept
}

// textSimilarity is token-set Jaccard similarity over lowercased words.
func textSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := tokenSet(a)
	setB := tokenSet(b)

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		set[tok] = struct{}{}
	}
	return set
}

// mergeEntities unions two entity lists preserving first-seen order,
// capped at maxMergedEntities.
func mergeEntities(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, e := range list {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			merged = append(merged, e)
			if len(merged) == maxMergedEntities {
				return merged
			}
		}
	}
	return merged
}
