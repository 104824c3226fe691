package sensor

import (
	"sync"
	"time"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// sighPeak is the envelope level a frame must cross to start a sigh
// candidate; the frame a few positions later must decay below half of it.
const sighPeak = 0.6

// BehaviorWindow derives rolling input statistics from the cumulative
// counters carried on RawSamples. Samples older than the window are evicted
// on every push. Safe for concurrent use: pushes come from the sampling
// loop while stats are read from the event loop.
type BehaviorWindow struct {
	mu      sync.Mutex
	window  time.Duration
	samples []models.RawSample
}

// NewBehaviorWindow creates a rolling window of the given span.
func NewBehaviorWindow(window time.Duration) *BehaviorWindow {
	return &BehaviorWindow{window: window}
}

// Push adds a sample and evicts expired ones.
func (w *BehaviorWindow) Push(s models.RawSample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, s)
	cutoff := s.At.Add(-w.window)
	i := 0
	for i < len(w.samples) && w.samples[i].At.Before(cutoff) {
		i++
	}
	w.samples = w.samples[i:]
}

// Stats computes the rolling behavior statistics over the current window.
// With fewer than two samples every rate is zero.
func (w *BehaviorWindow) Stats() models.BehaviorStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) < 2 {
		return models.BehaviorStats{}
	}

	first, last := w.samples[0], w.samples[len(w.samples)-1]
	elapsed := last.At.Sub(first.At)
	if elapsed <= 0 {
		return models.BehaviorStats{}
	}
	minutes := elapsed.Minutes()

	keys := float64(last.Keystrokes - first.Keystrokes)
	backs := float64(last.Backspaces - first.Backspaces)
	clicks := float64(last.Clicks - first.Clicks)
	// Counter resets (sampler restart) show up as negative deltas.
	if keys < 0 || backs < 0 || clicks < 0 {
		return models.BehaviorStats{}
	}

	stats := models.BehaviorStats{
		ClicksPerMinute: clicks / minutes,
		KeysPerMinute:   keys / minutes,
	}
	if keys > 0 {
		stats.BackspaceRatio = backs / keys
	}
	for _, s := range w.samples {
		stats.SighMatches += sighMatches(s.AudioEnvelope)
	}
	return stats
}

// sighMatches counts rise-then-decay shapes in an audio envelope: a frame
// above sighPeak followed within four frames by one below half the peak.
func sighMatches(env []float64) int {
	matches := 0
	for i := 0; i < len(env); i++ {
		if env[i] < sighPeak {
			continue
		}
		for j := i + 1; j < len(env) && j <= i+4; j++ {
			if env[j] < env[i]/2 {
				matches++
				i = j
				break
			}
		}
	}
	return matches
}
