// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zacteqye72-art/project-focus-app/internal/entitycache"
	"github.com/zacteqye72-art/project-focus-app/internal/nudge"
	"github.com/zacteqye72-art/project-focus-app/internal/sampler"
	"github.com/zacteqye72-art/project-focus-app/internal/stabilizer"
)

// Environment variables honored by Load.
const (
	EnvDataDir          = "FOCUS_DATA_DIR"
	EnvAPIKey           = "DASHSCOPE_API_KEY"
	EnvSampleRing       = "FOCUS_SAMPLE_RING"
	EnvConfidenceHigh   = "FOCUS_CONFIDENCE_HIGH"
	EnvConfidenceMedium = "FOCUS_CONFIDENCE_MEDIUM"
	EnvHeartbeatMinutes = "FOCUS_HEARTBEAT_MINUTES"
	EnvCooldownMinutes  = "FOCUS_NUDGE_COOLDOWN_MINUTES"
	EnvMaxPerSession    = "FOCUS_MAX_NUDGE_PER_SESSION"
	EnvRedactCmd        = "FOCUS_REDACT_CMD"
)

// Config aggregates per-component configuration.
type Config struct {
	DataDir   string
	APIKey    string
	RedactCmd string // external screenshot redaction command, optional
	Sampler   sampler.Config
	Cache     entitycache.Config
	Nudge     nudge.Config
	Monitor   stabilizer.Config
}

// Load builds configuration from environment variables, falling back
// to each component's defaults.
func Load() Config {
	cfg := Config{
		DataDir:   os.Getenv(EnvDataDir),
		APIKey:    os.Getenv(EnvAPIKey),
		RedactCmd: os.Getenv(EnvRedactCmd),
		Sampler:   sampler.DefaultConfig(),
		Cache:     entitycache.DefaultConfig(),
		Nudge:     nudge.DefaultConfig(),
		Monitor:   stabilizer.DefaultConfig(),
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.DataDir = filepath.Join(home, ".focusapp")
	}

	if n, ok := envInt(EnvSampleRing); ok {
		cfg.Cache.RingSize = n
	}
	if f, ok := envFloat(EnvConfidenceHigh); ok {
		cfg.Cache.ConfidenceHigh = f
	}
	if f, ok := envFloat(EnvConfidenceMedium); ok {
		cfg.Cache.ConfidenceMedium = f
	}
	if n, ok := envInt(EnvHeartbeatMinutes); ok {
		cfg.Sampler.HeartbeatInterval = time.Duration(n) * time.Minute
	}
	if n, ok := envInt(EnvCooldownMinutes); ok {
		cfg.Nudge.Cooldown = time.Duration(n) * time.Minute
	}
	if n, ok := envInt(EnvMaxPerSession); ok {
		cfg.Nudge.MaxPerSession = n
	}

	return cfg
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
