// Package accumulator scores trigger events and gates how often the remote
// reasoning call is made. It is the only component mutating the in-flight
// state, and it enforces at-most-one reasoning call at a time.
package accumulator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// Config holds the acceptance policy knobs.
type Config struct {
	Weights        map[models.TriggerReason]float64
	AcceptBar      float64
	MinSpacing     time.Duration
	MaxInterval    time.Duration // force an acceptance after this long with pending events
	SuppressWindow time.Duration // same-reason events inside this span are damped
}

// Fallback scores for reasons missing from the weight table. Behavioral
// reasons carry more signal than structural ones.
const (
	defaultStructuralWeight = 0.5
	defaultBehavioralWeight = 2.0
)

// suppressFactor damps a repeated reason inside the suppression window.
const suppressFactor = 0.5

// Summary condenses the events accumulated since the last acceptance; it
// becomes part of the reasoning prompt.
type Summary struct {
	DurationSeconds float64
	TotalScore      float64
	EventCount      int
	DominantPattern models.TriggerReason
	AppSwitches     int
	Recent          []models.TriggerEvent
	Behavior        models.BehaviorStats
}

// Acceptance is handed to the capture scheduler when an event clears the bar.
type Acceptance struct {
	Event   models.TriggerEvent
	Summary Summary
}

type scored struct {
	event models.TriggerEvent
	score float64
	at    time.Time
}

// Accumulator buffers scored events between acceptances. Rejected events are
// eventually discarded, never queued: freshness beats completeness here.
type Accumulator struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	inFlight     bool
	startedAt    time.Time
	lastAccepted time.Time
	buffer       []scored
	lastBehavior models.BehaviorStats
	metrics      *metrics
}

// New creates an accumulator with the given policy.
func New(cfg Config) *Accumulator {
	now := time.Now()
	return &Accumulator{
		cfg:          cfg,
		now:          time.Now,
		startedAt:    now,
		lastAccepted: now,
		metrics:      newMetrics(),
	}
}

// SetNow overrides the clock and resets the interval anchors. Test hook.
func (a *Accumulator) SetNow(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
	a.startedAt = now()
	a.lastAccepted = now()
}

// UpdateConfig swaps in a new policy. Buffered events keep their scores.
func (a *Accumulator) UpdateConfig(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

// InFlight reports whether a reasoning call is outstanding.
func (a *Accumulator) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// TryBeginFlight claims the in-flight slot for a reasoning call made outside
// the trigger path (pet clicks). Returns false when one is already
// outstanding.
func (a *Accumulator) TryBeginFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight {
		return false
	}
	a.inFlight = true
	return true
}

// EndFlight clears the in-flight flag. Called on response, validation
// failure, or timeout; every outcome of a reasoning call must land here.
func (a *Accumulator) EndFlight() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight = false
}

// Score returns the weight an event would contribute right now, after
// recency suppression against the buffered events.
func (a *Accumulator) Score(ev models.TriggerEvent) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scoreLocked(ev, a.now())
}

func (a *Accumulator) scoreLocked(ev models.TriggerEvent, now time.Time) float64 {
	w, ok := a.cfg.Weights[ev.Reason]
	if !ok {
		w = defaultStructuralWeight
		if ev.Reason.Behavioral() {
			w = defaultBehavioralWeight
		}
	}
	// A reason repeating inside the suppression window is chatter, not news.
	for i := len(a.buffer) - 1; i >= 0; i-- {
		if now.Sub(a.buffer[i].at) > a.cfg.SuppressWindow {
			break
		}
		if a.buffer[i].event.Reason == ev.Reason {
			w *= suppressFactor
			break
		}
	}
	return w
}

// Add scores one event and decides acceptance. Events must arrive in
// timestamp order. Returns a non-nil Acceptance exactly when the event is
// accepted, in which case the in-flight flag is already set.
func (a *Accumulator) Add(ev models.TriggerEvent, behavior models.BehaviorStats) (*Acceptance, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	score := a.scoreLocked(ev, now)
	a.buffer = append(a.buffer, scored{event: ev, score: score, at: now})
	a.lastBehavior = behavior
	a.metrics.scored(ev.Reason)

	total := 0.0
	for _, sc := range a.buffer {
		total += sc.score
	}

	if a.inFlight {
		a.metrics.rejected("in-flight")
		return nil, false
	}

	sinceAccepted := now.Sub(a.lastAccepted)
	forced := a.cfg.MaxInterval > 0 && sinceAccepted >= a.cfg.MaxInterval
	if !forced {
		if total < a.cfg.AcceptBar {
			a.metrics.rejected("below-bar")
			return nil, false
		}
		if sinceAccepted < a.cfg.MinSpacing {
			a.metrics.rejected("spacing")
			return nil, false
		}
	}

	acc := &Acceptance{Event: ev, Summary: a.consumeLocked(now, total)}
	a.inFlight = true
	a.metrics.accepted(ev.Reason, forced)
	log.Debug().
		Str("reason", string(ev.Reason)).
		Float64("score", total).
		Bool("forced", forced).
		Msg("Event accepted for reasoning")
	return acc, true
}

// consumeLocked summarizes and resets the buffer. Callers hold a.mu.
func (a *Accumulator) consumeLocked(now time.Time, total float64) Summary {
	byReason := make(map[models.TriggerReason]float64)
	switches := 0
	for _, sc := range a.buffer {
		byReason[sc.event.Reason] += sc.score
		if sc.event.Reason == models.ReasonWindowChanged {
			switches++
		}
	}

	var dominant models.TriggerReason
	best := -1.0
	for reason, score := range byReason {
		if score > best {
			best, dominant = score, reason
		}
	}

	recent := make([]models.TriggerEvent, 0, 5)
	start := len(a.buffer) - 5
	if start < 0 {
		start = 0
	}
	for _, sc := range a.buffer[start:] {
		recent = append(recent, sc.event)
	}

	summary := Summary{
		DurationSeconds: now.Sub(a.startedAt).Seconds(),
		TotalScore:      total,
		EventCount:      len(a.buffer),
		DominantPattern: dominant,
		AppSwitches:     switches,
		Recent:          recent,
		Behavior:        a.lastBehavior,
	}

	a.buffer = nil
	a.startedAt = now
	a.lastAccepted = now
	return summary
}
