// Package trigger turns raw samples and window push notifications into
// discrete, named trigger events. Every trigger kind runs the same state
// machine: armed -> fired+disarmed -> (re-arm condition) -> armed, so no
// condition fires twice without clearing in between.
package trigger

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// Config holds the tunable detection thresholds.
type Config struct {
	DwellTimeout      time.Duration
	IdleThreshold     time.Duration
	IdleRearmBelow    time.Duration
	BackspaceRatio    float64
	ClicksPerMinute   float64
	TypingBurstKPM    float64
	RapidSwitchCount  int
	RapidSwitchWindow time.Duration
}

// Detector owns all trigger state. It is fed from two sides: OnWindowEvent
// (OS push notifications) and Observe (the sampling tick); both funnel into
// the single emit callback, which is the single writer of the event queue.
type Detector struct {
	mu   sync.Mutex
	cfg  Config
	now  func() time.Time
	emit func(models.TriggerEvent)

	// Foreground window context.
	lastApp   string
	lastTitle string
	lastKey   string
	dwellFrom time.Time
	primed    bool

	// Disarm flags, one per once-per-episode trigger kind.
	dwellFired       bool
	idleFired        bool
	frustrationFired bool
	burstFired       bool
	sighFired        bool

	switchTimes []time.Time
}

// New creates a detector that hands every fired event to emit.
func New(cfg Config, emit func(models.TriggerEvent)) *Detector {
	return &Detector{
		cfg:  cfg,
		now:  time.Now,
		emit: emit,
	}
}

// SetNow overrides the detector clock. Test hook.
func (d *Detector) SetNow(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// UpdateConfig swaps in new thresholds. Used by the config live reload;
// in-progress episodes keep their state.
func (d *Detector) UpdateConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// OnWindowEvent handles a foreground-activation push notification carrying
// the freshly read foreground context.
func (d *Detector) OnWindowEvent(appName, title string, idleSeconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observeWindow(appName, title, idleSeconds)
}

// Observe processes one sampling tick: window fallback detection (in case a
// push notification was missed), dwell countdown, idle threshold, and the
// behavioral triggers derived from rolling stats.
func (d *Detector) Observe(sample models.RawSample, idleSeconds float64, stats models.BehaviorStats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observeWindow(sample.AppName, sample.WindowTitle, idleSeconds)
	d.observeDwell(sample.AppName, sample.WindowTitle, idleSeconds)
	d.observeIdle(sample.AppName, sample.WindowTitle, idleSeconds)
	d.observeBehavior(sample, idleSeconds, stats)
}

// observeWindow fires window-changed / title-changed and resets the dwell
// timer on every context change. Callers hold d.mu.
func (d *Detector) observeWindow(appName, title string, idleSeconds float64) {
	key := appName + "::" + title
	now := d.now()

	if !d.primed {
		d.primed = true
		d.lastApp, d.lastTitle, d.lastKey = appName, title, key
		d.dwellFrom = now
		return
	}
	if key == d.lastKey {
		return
	}

	reason := models.ReasonTitleChanged
	if appName != d.lastApp {
		reason = models.ReasonWindowChanged
	}
	d.lastApp, d.lastTitle, d.lastKey = appName, title, key
	d.dwellFrom = now
	d.dwellFired = false

	d.fire(models.TriggerEvent{
		Reason:       reason,
		TS:           unix(now),
		AppName:      appName,
		WindowTitle:  title,
		IdleSeconds:  idleSeconds,
		DwellSeconds: 0,
	})

	if reason == models.ReasonWindowChanged {
		d.trackRapidSwitch(now, idleSeconds)
	}
}

// observeDwell fires dwell-timeout once per window key. Callers hold d.mu.
func (d *Detector) observeDwell(appName, title string, idleSeconds float64) {
	if !d.primed || d.dwellFired || d.lastKey == "" {
		return
	}
	now := d.now()
	dwell := now.Sub(d.dwellFrom)
	if dwell < d.cfg.DwellTimeout {
		return
	}
	d.dwellFired = true
	d.fire(models.TriggerEvent{
		Reason:       models.ReasonDwellTimeout,
		TS:           unix(now),
		AppName:      appName,
		WindowTitle:  title,
		IdleSeconds:  idleSeconds,
		DwellSeconds: dwell.Seconds(),
	})
}

// observeIdle fires idle-threshold once per idle episode and re-arms only
// after activity resumes. Callers hold d.mu.
func (d *Detector) observeIdle(appName, title string, idleSeconds float64) {
	if idleSeconds >= d.cfg.IdleThreshold.Seconds() {
		if d.idleFired {
			return
		}
		d.idleFired = true
		now := d.now()
		d.fire(models.TriggerEvent{
			Reason:       models.ReasonIdleThreshold,
			TS:           unix(now),
			AppName:      appName,
			WindowTitle:  title,
			IdleSeconds:  idleSeconds,
			DwellSeconds: now.Sub(d.dwellFrom).Seconds(),
		})
		return
	}
	if idleSeconds < d.cfg.IdleRearmBelow.Seconds() {
		d.idleFired = false
	}
}

// observeBehavior runs the ratio/rate triggers over rolling stats. Each one
// re-arms only after its condition clears. Callers hold d.mu.
func (d *Detector) observeBehavior(sample models.RawSample, idleSeconds float64, stats models.BehaviorStats) {
	now := d.now()
	dwell := now.Sub(d.dwellFrom).Seconds()

	frustrated := stats.BackspaceRatio >= d.cfg.BackspaceRatio &&
		stats.ClicksPerMinute >= d.cfg.ClicksPerMinute
	if frustrated && !d.frustrationFired {
		d.frustrationFired = true
		d.fire(models.TriggerEvent{
			Reason:       models.ReasonFrustrationPattern,
			TS:           unix(now),
			AppName:      sample.AppName,
			WindowTitle:  sample.WindowTitle,
			IdleSeconds:  idleSeconds,
			DwellSeconds: dwell,
		})
	} else if !frustrated {
		d.frustrationFired = false
	}

	bursting := stats.KeysPerMinute >= d.cfg.TypingBurstKPM
	if bursting && !d.burstFired {
		d.burstFired = true
		d.fire(models.TriggerEvent{
			Reason:       models.ReasonTypingBurst,
			TS:           unix(now),
			AppName:      sample.AppName,
			WindowTitle:  sample.WindowTitle,
			IdleSeconds:  idleSeconds,
			DwellSeconds: dwell,
		})
	} else if !bursting {
		d.burstFired = false
	}

	sighing := stats.SighMatches > 0
	if sighing && !d.sighFired {
		d.sighFired = true
		d.fire(models.TriggerEvent{
			Reason:       models.ReasonSighDetected,
			TS:           unix(now),
			AppName:      sample.AppName,
			WindowTitle:  sample.WindowTitle,
			IdleSeconds:  idleSeconds,
			DwellSeconds: dwell,
		})
	} else if !sighing {
		d.sighFired = false
	}
}

// trackRapidSwitch fires rapid-switching when enough window changes land
// inside the configured span, then clears the burst. Callers hold d.mu.
func (d *Detector) trackRapidSwitch(now time.Time, idleSeconds float64) {
	d.switchTimes = append(d.switchTimes, now)
	cutoff := now.Add(-d.cfg.RapidSwitchWindow)
	i := 0
	for i < len(d.switchTimes) && d.switchTimes[i].Before(cutoff) {
		i++
	}
	d.switchTimes = d.switchTimes[i:]

	if d.cfg.RapidSwitchCount <= 0 || len(d.switchTimes) < d.cfg.RapidSwitchCount {
		return
	}
	d.switchTimes = nil
	d.fire(models.TriggerEvent{
		Reason:       models.ReasonRapidSwitching,
		TS:           unix(now),
		AppName:      d.lastApp,
		WindowTitle:  d.lastTitle,
		IdleSeconds:  idleSeconds,
		DwellSeconds: 0,
	})
}

func (d *Detector) fire(ev models.TriggerEvent) {
	log.Debug().
		Str("reason", string(ev.Reason)).
		Str("app", ev.AppName).
		Float64("dwell_seconds", ev.DwellSeconds).
		Msg("Trigger fired")
	d.emit(ev)
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
