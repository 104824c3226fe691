package models

import "time"

// RawSample is one immutable reading of coarse machine state. Produced on a
// fixed cadence or on a window push notification; never mutated after creation.
type RawSample struct {
	At              time.Time
	CPUFraction     float64  // 0..1 load fraction
	MemFraction     float64  // 0..1 memory pressure
	BatteryFraction *float64 // nil on machines without a battery
	Charging        bool
	AppName         string
	WindowTitle     string
	Keystrokes      int64 // cumulative since sampler start
	Backspaces      int64
	Clicks          int64
	AudioEnvelope   []float64 // short ambient-audio envelope summary
}

// BatteryPercent returns the battery level in percent, or -1 when unknown.
func (s *RawSample) BatteryPercent() float64 {
	if s.BatteryFraction == nil {
		return -1
	}
	return *s.BatteryFraction * 100
}

// BehaviorStats holds rolling-window derivations of the input counters.
type BehaviorStats struct {
	BackspaceRatio  float64 // backspaces / keystrokes over the window
	ClicksPerMinute float64
	KeysPerMinute   float64
	SighMatches     int // audio envelope pattern matches over the window
}

// SignalBundle is the full latest signal picture the mood engine maps from.
// It is assembled at evaluation time, not stored.
type SignalBundle struct {
	Sample      RawSample
	Behavior    BehaviorStats
	AppCategory string // from the app category registry, "" when unknown
	IsLateNight bool
	IsWorkHours bool
	// LastReactionMood carries the mood tag of the most recent validated
	// reaction, or "" when none has arrived yet.
	LastReactionMood Mood
}

// TimeOfDayFlags derives the late-night / work-hours flags for t.
func TimeOfDayFlags(t time.Time) (lateNight, workHours bool) {
	h := t.Hour()
	return h >= 23 || h < 5, h >= 9 && h <= 18
}
