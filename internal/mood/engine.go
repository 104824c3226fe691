// Package mood owns the process-wide mood cell: one writer (this engine),
// many readers. Transitions respect a minimum-dwell hysteresis except for a
// small set of override causes that may flip the mood immediately.
package mood

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// Cause classifies what asked for a mood transition. Override causes bypass
// the hysteresis; everything else waits out the minimum dwell.
type Cause string

const (
	CauseSignal    Cause = "signal"    // periodic signal-bundle evaluation
	CauseReaction  Cause = "reaction"  // mood tag on a validated reaction
	CauseCharging  Cause = "charging"  // charging-state flip
	CauseCritical  Cause = "critical"  // critical battery or resource threshold
)

// Override reports whether c bypasses the minimum-dwell hysteresis.
func (c Cause) Override() bool {
	return c == CauseCharging || c == CauseCritical
}

// State is a read-only snapshot of the mood cell.
type State struct {
	Mood      models.Mood
	Since     time.Time
	DwellOver time.Time // earliest instant a non-override transition may occur
}

// Thresholds for the holistic mapping. Fractions of capacity.
const (
	criticalBattery = 0.15
	lowBattery      = 0.50
	hotCPU          = 0.80
	stuffedMem      = 0.85
)

// entertainmentCategory is the app category that earns judgment during work
// hours.
const entertainmentCategory = "entertainment"

// Engine is the mood state machine.
type Engine struct {
	mu       sync.RWMutex
	minDwell time.Duration
	now      func() time.Time

	current  models.Mood
	since    time.Time
	deadline time.Time
}

// NewEngine creates the engine starting in the chill mood with an expired
// dwell, so the first real signal can transition immediately.
func NewEngine(minDwell time.Duration) *Engine {
	now := time.Now()
	return &Engine{
		minDwell: minDwell,
		now:      time.Now,
		current:  models.MoodChill,
		since:    now,
		deadline: now,
	}
}

// SetNow overrides the engine clock and re-anchors the dwell. Test hook.
func (e *Engine) SetNow(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
	e.since = now()
	e.deadline = now()
}

// Current returns a snapshot of the mood cell.
func (e *Engine) Current() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{Mood: e.current, Since: e.since, DwellOver: e.deadline}
}

// Derive maps the full signal bundle to a candidate mood. Priority order
// mirrors how urgent each condition is; the first match wins.
func Derive(b models.SignalBundle) models.Mood {
	battery := b.Sample.BatteryFraction

	if battery != nil && *battery < criticalBattery && !b.Sample.Charging {
		return models.MoodDying
	}
	if b.IsLateNight {
		return models.MoodNocturnal
	}
	if b.Sample.CPUFraction > hotCPU {
		return models.MoodOverheated
	}
	if b.Sample.MemFraction > stuffedMem {
		return models.MoodStuffed
	}
	if b.Sample.Charging && battery != nil && *battery < lowBattery {
		return models.MoodPleased
	}
	if b.IsWorkHours && strings.EqualFold(b.AppCategory, entertainmentCategory) {
		return models.MoodJudgy
	}
	if b.LastReactionMood.Valid() {
		return b.LastReactionMood
	}
	return models.MoodChill
}

// Apply attempts a transition to candidate. Returns true when the mood cell
// changed. Transitions within the minimum dwell are rejected unless the
// cause is an override; rejected candidates leave no trace.
func (e *Engine) Apply(candidate models.Mood, cause Cause) bool {
	if !candidate.Valid() {
		log.Warn().Str("mood", string(candidate)).Msg("Ignoring invalid mood candidate")
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if candidate == e.current {
		return false
	}

	now := e.now()
	if !cause.Override() && now.Before(e.deadline) {
		return false
	}

	log.Info().
		Str("from", string(e.current)).
		Str("to", string(candidate)).
		Str("cause", string(cause)).
		Msg("Mood transition")

	e.current = candidate
	e.since = now
	e.deadline = now.Add(e.minDwell)
	return true
}

// DetectOverride inspects consecutive samples for override conditions:
// a charging flip or a critical battery/CPU state. Returns the cause to use
// with Apply, or CauseSignal when nothing urgent happened.
func DetectOverride(prev, cur models.RawSample) Cause {
	if prev.Charging != cur.Charging {
		return CauseCharging
	}
	if cur.BatteryFraction != nil && *cur.BatteryFraction < criticalBattery && !cur.Charging {
		return CauseCritical
	}
	if cur.CPUFraction > hotCPU && prev.CPUFraction <= hotCPU {
		return CauseCritical
	}
	return CauseSignal
}
