// Package sensor provides the signal sampler: low-frequency polling of coarse
// machine state plus a subscribable push source for foreground-window changes.
package sensor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// Metrics is one reading of the machine resource state.
type Metrics struct {
	CPUFraction     float64
	MemFraction     float64
	BatteryFraction *float64 // nil without a battery
	Charging        bool
}

// MetricsSource reads resource metrics. Implementations may fail
// transiently; the sampler substitutes the last known reading.
type MetricsSource interface {
	Metrics() (Metrics, error)
}

// WindowSource reports the foreground window and pushes change notifications.
// Subscribe registers a single callback invoked on every OS-level foreground
// activation; the concrete notification mechanism stays behind this interface.
type WindowSource interface {
	Foreground() (appName, title string, err error)
	Subscribe(fn func())
}

// InputSource reads cumulative keyboard/pointer counters and the idle clock.
type InputSource interface {
	Counters() (keystrokes, backspaces, clicks int64, err error)
	IdleSeconds() (float64, error)
}

// AudioSource reads a short ambient-audio envelope summary.
type AudioSource interface {
	Envelope() ([]float64, error)
}

// Sampler assembles immutable RawSamples from the sources. A failed source
// never fails the sample; the previous value is carried forward.
type Sampler struct {
	metrics MetricsSource
	windows WindowSource
	input   InputSource
	audio   AudioSource
	now     func() time.Time

	mu   sync.Mutex
	last models.RawSample
}

// NewSampler creates a sampler over the given sources. Audio may be nil when
// no microphone access is available.
func NewSampler(metrics MetricsSource, windows WindowSource, input InputSource, audio AudioSource) *Sampler {
	return &Sampler{
		metrics: metrics,
		windows: windows,
		input:   input,
		audio:   audio,
		now:     time.Now,
	}
}

// SetNow overrides the sampler clock. Test hook.
func (s *Sampler) SetNow(now func() time.Time) { s.now = now }

// Sample collects one RawSample. Unavailable sensors fall back to the last
// known value and are logged at debug level, never escalated.
func (s *Sampler) Sample() models.RawSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.last
	out.At = s.now()

	if m, err := s.metrics.Metrics(); err != nil {
		log.Debug().Err(err).Msg("Metrics source unavailable, keeping last reading")
	} else {
		out.CPUFraction = m.CPUFraction
		out.MemFraction = m.MemFraction
		out.BatteryFraction = m.BatteryFraction
		out.Charging = m.Charging
	}

	if app, title, err := s.windows.Foreground(); err != nil {
		log.Debug().Err(err).Msg("Window source unavailable, keeping last foreground")
	} else {
		out.AppName = app
		out.WindowTitle = title
	}

	if keys, backs, clicks, err := s.input.Counters(); err != nil {
		log.Debug().Err(err).Msg("Input source unavailable, keeping last counters")
	} else {
		out.Keystrokes = keys
		out.Backspaces = backs
		out.Clicks = clicks
	}

	if s.audio != nil {
		if env, err := s.audio.Envelope(); err != nil {
			log.Debug().Err(err).Msg("Audio source unavailable")
		} else {
			out.AudioEnvelope = env
		}
	} else {
		out.AudioEnvelope = nil
	}

	s.last = out
	return out
}

// IdleSeconds reads the idle clock, falling back to zero when unavailable so a
// broken sensor can never fake an idle episode.
func (s *Sampler) IdleSeconds() float64 {
	idle, err := s.input.IdleSeconds()
	if err != nil {
		log.Debug().Err(err).Msg("Idle clock unavailable")
		return 0
	}
	if idle < 0 {
		return 0
	}
	return idle
}
