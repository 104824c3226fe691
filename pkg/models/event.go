// Package models contains the domain types shared across the boni core:
// trigger events, raw sensor samples, and validated reactions.
package models

import "fmt"

// TriggerReason identifies the discrete condition that produced a TriggerEvent.
// The set is closed; anything else fails validation.
type TriggerReason string

const (
	// ReasonWindowChanged fires when the foreground application changes.
	ReasonWindowChanged TriggerReason = "window-changed"
	// ReasonTitleChanged fires when the window title changes within the same app.
	ReasonTitleChanged TriggerReason = "title-changed"
	// ReasonDwellTimeout fires once per window after continuous foreground dwell.
	ReasonDwellTimeout TriggerReason = "dwell-timeout"
	// ReasonIdleThreshold fires once per idle episode.
	ReasonIdleThreshold TriggerReason = "idle-threshold"
	// ReasonFrustrationPattern fires on combined high backspace ratio and click rate.
	ReasonFrustrationPattern TriggerReason = "frustration-pattern"
	// ReasonRapidSwitching fires on a burst of window changes in a short span.
	ReasonRapidSwitching TriggerReason = "rapid-switching"
	// ReasonTypingBurst fires on a sustained high keystroke rate.
	ReasonTypingBurst TriggerReason = "typing-burst"
	// ReasonSighDetected fires on an ambient-audio envelope matching a sigh.
	ReasonSighDetected TriggerReason = "sigh-detected"
)

// Valid reports whether r is one of the known trigger reasons.
func (r TriggerReason) Valid() bool {
	switch r {
	case ReasonWindowChanged, ReasonTitleChanged, ReasonDwellTimeout,
		ReasonIdleThreshold, ReasonFrustrationPattern, ReasonRapidSwitching,
		ReasonTypingBurst, ReasonSighDetected:
		return true
	}
	return false
}

// Behavioral reports whether r derives from user behavior rather than
// window structure. Behavioral reasons score higher in the accumulator.
func (r TriggerReason) Behavioral() bool {
	switch r {
	case ReasonFrustrationPattern, ReasonRapidSwitching, ReasonTypingBurst, ReasonSighDetected:
		return true
	}
	return false
}

// TriggerEvent is the payload of a single detected trigger. Created by the
// trigger detector, consumed exactly once by the accumulator.
type TriggerEvent struct {
	Reason       TriggerReason `json:"reason"`
	TS           float64       `json:"ts"`
	AppName      string        `json:"app_name"`
	WindowTitle  string        `json:"window_title"`
	IdleSeconds  float64       `json:"idle_seconds"`
	DwellSeconds float64       `json:"dwell_seconds"`
}

// Validate checks structural invariants: known reason, non-negative counters.
func (e *TriggerEvent) Validate() error {
	if !e.Reason.Valid() {
		return fmt.Errorf("unknown trigger reason %q", e.Reason)
	}
	if e.IdleSeconds < 0 {
		return fmt.Errorf("negative idle_seconds %f", e.IdleSeconds)
	}
	if e.DwellSeconds < 0 {
		return fmt.Errorf("negative dwell_seconds %f", e.DwellSeconds)
	}
	return nil
}
