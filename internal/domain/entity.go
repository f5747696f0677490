// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// SampleTrigger identifies what caused a context sample to be taken.
type SampleTrigger string

const (
	TriggerHeartbeat    SampleTrigger = "heartbeat"
	TriggerMilestone    SampleTrigger = "milestone"
	TriggerIdleToActive SampleTrigger = "idle_to_active"
	TriggerManual       SampleTrigger = "manual"
)

// Confidence grades how well current activity matches recent work context.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// WindowContext is a raw capture of the frontmost window.
type WindowContext struct {
	AppID        string // bundle identifier, e.g. com.google.Chrome
	AppName      string
	Title        string
	URL          string // browsers only
	URLDomain    string
	DocPath      string // editors/document apps only
	OnScreenText string // optional accessibility text, may be empty
	PID          int32
	ExePath      string
	CapturedAt   time.Time
}

// Sample is a normalized snapshot of user activity kept by the entity cache.
type Sample struct {
	AppID         string
	Title         string
	URLDomain     string
	DocID         string
	Entities      []string
	RecentSnippet string
	Trigger       SampleTrigger
	Timestamp     time.Time
	MergedCount   int // how many raw captures were folded into this sample
}

// CurrentMeta is the activity metadata used for confidence matching.
type CurrentMeta struct {
	AppID     string
	Title     string
	URLDomain string
}

// ContextMatch is the result of matching current activity against the cache.
type ContextMatch struct {
	Confidence Confidence
	Score      float64
	Sample     *Sample // best matching sample, nil when cache is empty
}

// FocusLabel is a classifier verdict for a single screen observation.
type FocusLabel string

const (
	LabelFocused        FocusLabel = "focused"
	LabelSemiDistracted FocusLabel = "semi_distracted"
	LabelDistracted     FocusLabel = "distracted"
	LabelUnclear        FocusLabel = "unclear"
)

// FocusState is the stabilized user state exposed to the host.
type FocusState string

const (
	StateDetecting      FocusState = "detecting"
	StateFocused        FocusState = "focused"
	StateSemiDistracted FocusState = "semi_distracted"
	StateDistracted     FocusState = "distracted"
	StateIdle           FocusState = "idle"
)

// Classification is one raw classifier result before stabilization.
type Classification struct {
	Label  FocusLabel
	Reason string
}

// Artifact is a captured screen image handed to the classifier.
type Artifact struct {
	Path     string
	Redacted bool
}

// AnalysisEvent reports one accepted classification to observers.
type AnalysisEvent struct {
	Label        FocusLabel
	Reason       string
	Consensus    int // occurrences of Label in the recent history window
	ArtifactPath string
	At           time.Time
}

// NudgeResult carries an accepted (or fallback) coaching message.
type NudgeResult struct {
	Message    string
	Fallback   bool
	Attempts   int
	Confidence Confidence
	Entities   []string
}

// SessionRecord is one completed focus session, persisted to history.
type SessionRecord struct {
	ID        string
	Subject   string
	StartedAt time.Time
	EndedAt   time.Time
	Minutes   float64
	Reminders int
	Nudges    int
}
