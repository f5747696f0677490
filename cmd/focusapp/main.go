// Package main is the CLI entry point for focusapp.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zacteqye72-art/project-focus-app/internal/config"
	"github.com/zacteqye72-art/project-focus-app/internal/domain"
	"github.com/zacteqye72-art/project-focus-app/internal/entitycache"
	"github.com/zacteqye72-art/project-focus-app/internal/infra"
	"github.com/zacteqye72-art/project-focus-app/internal/nudge"
	"github.com/zacteqye72-art/project-focus-app/internal/sampler"
	"github.com/zacteqye72-art/project-focus-app/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const apiKeySecret = "dashscope_api_key"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusapp",
	Short: "Focus coach - watches your attention and nudges you back on task",
	Long: `focusapp monitors the frontmost window and periodic screenshots to infer
whether you are focused on your stated work goal. When you drift, it
generates a short, concrete coaching nudge grounded in what you were
actually working on.

Screenshots never leave the machine except as redacted classification
requests, and are deleted when the session ends.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a monitored focus session",
	Long: `Starts a focus session for the given work context. The session samples
your activity, classifies focus on window changes, and prints state
transitions, nudges, and reminders until the duration elapses or the
process receives SIGINT/SIGTERM.`,
	RunE: runSession,
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Take one context sample and print it",
	Long:  `Captures the frontmost window once and prints the distilled sample (app, title, entities, doc id).`,
	RunE:  runSample,
}

var nudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Generate a coaching nudge now",
	Long: `Samples the current context and generates one validated nudge for the
given work context. Use --force to bypass cooldown and session limits.`,
	RunE: runNudge,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage session history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded focus sessions",
	RunE:  runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded focus sessions",
	RunE:  runHistoryClear,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	workContext  string
	sessionLimit string
	forceNudge   bool
	historyLimit int
	jsonOutput   bool
)

func init() {
	runCmd.Flags().StringVar(&workContext, "context", "", "What you are working on (required)")
	runCmd.Flags().StringVar(&sessionLimit, "duration", "", "Session length, e.g. 45m (default: until interrupted)")
	_ = runCmd.MarkFlagRequired("context")

	nudgeCmd.Flags().StringVar(&workContext, "context", "", "What you are working on (required)")
	nudgeCmd.Flags().BoolVar(&forceNudge, "force", false, "Bypass cooldown and session limits")
	_ = nudgeCmd.MarkFlagRequired("context")

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum sessions to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(nudgeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := createLogger(cfg.DataDir)
	defer func() { _ = logger.Sync() }()

	history, err := openHistory(cfg.DataDir)
	if err != nil {
		return err
	}
	defer history.Close()

	apiKey, err := resolveAPIKey(cfg, history)
	if err != nil {
		return err
	}

	sessionCfg := usecase.SessionConfig{
		Subject:    workContext,
		Sampler:    cfg.Sampler,
		Cache:      cfg.Cache,
		Nudge:      cfg.Nudge,
		Stabilizer: cfg.Monitor,
	}
	if sessionLimit != "" {
		parsed, parseErr := time.ParseDuration(sessionLimit)
		if parseErr != nil {
			return fmt.Errorf("invalid --duration: %w", parseErr)
		}
		sessionCfg.Duration = parsed
	}

	clock := infra.NewRealClock()
	resolver := infra.NewProcessResolver()
	capturer := infra.NewAppleScriptCapturer(resolver, clock, logger)
	screens := infra.NewScreenshotManager(filepath.Join(cfg.DataDir, "screenshots"), clock, logger)
	dashscope := infra.NewDashScopeClient(infra.DefaultDashScopeConfig(apiKey), logger)

	deps := usecase.SessionDeps{
		Capturer:   capturer,
		Screens:    screens,
		Redactor:   infra.RedactorFromCommand(cfg.RedactCmd),
		Classifier: dashscope,
		Idle:       infra.NewHIDIdleMonitor(),
		TextGen:    dashscope,
		Store:      history,
		Clock:      clock,
		Logger:     logger,
	}
	events := usecase.SessionEvents{
		OnStateChange: func(state domain.FocusState, reason string) {
			fmt.Printf("[state] %s (%s)\n", state, reason)
		},
		OnNudge: func(result *domain.NudgeResult) {
			fmt.Printf("\n>>> %s\n\n", result.Message)
		},
		OnReminder: func(message string) {
			fmt.Printf("[reminder] %s\n", message)
		},
	}

	runner := usecase.NewSessionRunner(sessionCfg, deps, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping session...")
		cancel()
	}()

	fmt.Printf("Focus session started: %q\n", workContext)
	if sessionCfg.Duration > 0 {
		fmt.Printf("Duration: %s\n", sessionCfg.Duration)
	}
	fmt.Println("Press Ctrl+C to stop.")

	record, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Session Summary ===\n")
	fmt.Printf("Subject:   %s\n", record.Subject)
	fmt.Printf("Duration:  %.1f minutes\n", record.Minutes)
	fmt.Printf("Nudges:    %d\n", record.Nudges)
	fmt.Printf("Reminders: %d\n", record.Reminders)
	return nil
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := createLogger(cfg.DataDir)
	defer func() { _ = logger.Sync() }()

	clock := infra.NewRealClock()
	capturer := infra.NewAppleScriptCapturer(infra.NewProcessResolver(), clock, logger)
	s := sampler.New(cfg.Sampler, capturer, clock, logger, nil)

	sample := s.Sample(context.Background(), domain.TriggerManual)
	if sample == nil {
		return fmt.Errorf("could not capture the frontmost window")
	}

	fmt.Println("\n=== Context Sample ===")
	fmt.Printf("App:      %s\n", sample.AppID)
	fmt.Printf("Title:    %s\n", sample.Title)
	if sample.URLDomain != "" {
		fmt.Printf("Domain:   %s\n", sample.URLDomain)
	}
	if sample.DocID != "" {
		fmt.Printf("Document: %s\n", sample.DocID)
	}
	fmt.Println("Entities:")
	for _, e := range sample.Entities {
		fmt.Printf("  - %s\n", e)
	}
	if sample.RecentSnippet != "" {
		fmt.Printf("Snippet:  %s\n", sample.RecentSnippet)
	}
	return nil
}

func runNudge(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := createLogger(cfg.DataDir)
	defer func() { _ = logger.Sync() }()

	history, err := openHistory(cfg.DataDir)
	if err != nil {
		return err
	}
	defer history.Close()

	apiKey, err := resolveAPIKey(cfg, history)
	if err != nil {
		return err
	}

	clock := infra.NewRealClock()
	capturer := infra.NewAppleScriptCapturer(infra.NewProcessResolver(), clock, logger)
	dashscope := infra.NewDashScopeClient(infra.DefaultDashScopeConfig(apiKey), logger)
	cache := entitycache.New(cfg.Cache, clock, logger)
	generator := nudge.NewGenerator(cfg.Nudge, dashscope, clock, logger)
	s := sampler.New(cfg.Sampler, capturer, clock, logger, nil)

	ctx := context.Background()
	meta := &domain.CurrentMeta{}
	if sample := s.Sample(ctx, domain.TriggerManual); sample != nil {
		cache.AddSample(sample)
		meta = &domain.CurrentMeta{
			AppID:     sample.AppID,
			Title:     sample.Title,
			URLDomain: sample.URLDomain,
		}
	}

	var result *domain.NudgeResult
	if forceNudge {
		result = generator.ForceGenerate(ctx, workContext, cache, meta)
	} else {
		result = generator.Generate(ctx, workContext, cache, meta)
	}
	if result == nil {
		return fmt.Errorf("nudge blocked by cooldown or session limit (use --force)")
	}

	fmt.Println(result.Message)
	if result.Fallback {
		fmt.Println("(fallback message; generation did not pass validation)")
	}
	return nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	history, err := openHistory(cfg.DataDir)
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.ListSessions(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	fmt.Println("\n=== Focus Sessions ===")
	for _, rec := range records {
		fmt.Printf("\n%s  %s\n", rec.StartedAt.Format("2006-01-02 15:04"), rec.Subject)
		fmt.Printf("  %.1f min, %d nudges, %d reminders\n",
			rec.Minutes, rec.Nudges, rec.Reminders)
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	history, err := openHistory(cfg.DataDir)
	if err != nil {
		return err
	}
	defer history.Close()

	if err := history.ClearSessions(); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	fmt.Println("Session history cleared.")
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
	} else {
		fmt.Printf("focusapp %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// openHistory opens the encrypted session store, generating the
// encryption key on first use.
func openHistory(dataDir string) (*infra.EncryptedHistory, error) {
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare encryption key: %w", err)
	}
	history, err := infra.NewEncryptedHistory(dataDir, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return history, nil
}

// resolveAPIKey prefers the environment, persisting it for later runs;
// otherwise falls back to the stored secret.
func resolveAPIKey(cfg config.Config, secrets domain.SecretStore) (string, error) {
	if cfg.APIKey != "" {
		_ = secrets.SetSecret(apiKeySecret, cfg.APIKey)
		return cfg.APIKey, nil
	}
	if stored, err := secrets.GetSecret(apiKeySecret); err == nil && stored != "" {
		return stored, nil
	}
	return "", fmt.Errorf("no DashScope API key: set %s", config.EnvAPIKey)
}

func createLogger(dataDir string) *zap.Logger {
	_ = os.MkdirAll(dataDir, 0700)

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(dataDir, "focusapp.log")}
	cfg.ErrorOutputPaths = []string{filepath.Join(dataDir, "focusapp.error.log")}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
