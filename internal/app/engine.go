// Package app wires the full pipeline: sampling, trigger detection, event
// accumulation, capture scheduling, the reasoning call, mood application,
// history, and the presentation feed.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hackerthon-gemini-agc/boni/internal/accumulator"
	"github.com/hackerthon-gemini-agc/boni/internal/capture"
	"github.com/hackerthon-gemini-agc/boni/internal/config"
	"github.com/hackerthon-gemini-agc/boni/internal/history"
	"github.com/hackerthon-gemini-agc/boni/internal/memory"
	"github.com/hackerthon-gemini-agc/boni/internal/mood"
	"github.com/hackerthon-gemini-agc/boni/internal/privacy"
	"github.com/hackerthon-gemini-agc/boni/internal/sensor"
	"github.com/hackerthon-gemini-agc/boni/internal/server"
	"github.com/hackerthon-gemini-agc/boni/internal/trigger"
	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// memoryStoreInterval is how often the current state is pushed to the
// long-term memory service.
const memoryStoreInterval = 60 * time.Second

// historyPruneInterval is how often expired reaction rows are pruned.
const historyPruneInterval = time.Hour

// ErrBusy is returned when a pet click arrives while a reasoning call is
// already outstanding.
var ErrBusy = errors.New("a reasoning call is already in flight")

// Reactor generates validated reactions. Satisfied by brain.Brain.
type Reactor interface {
	React(ctx context.Context, sample models.RawSample, payload *capture.Payload, mood models.Mood) (*models.Reaction, error)
	PetReact(ctx context.Context, mood models.Mood) (*models.Reaction, error)
}

// HistorySink persists validated reactions. Satisfied by history.Store.
type HistorySink interface {
	Append(ctx context.Context, row *history.ReactionRow) error
	Recent(ctx context.Context, n int) ([]history.ReactionRow, error)
	CountByMood(ctx context.Context) (map[models.Mood]int64, error)
	Prune(ctx context.Context, beforeEpochMs int64) (int64, error)
}

// Categorizer maps app names to categories.
type Categorizer interface {
	Categorize(appName string) string
}

// CategorizerFunc adapts a function to the Categorizer interface.
type CategorizerFunc func(appName string) string

func (f CategorizerFunc) Categorize(appName string) string { return f(appName) }

// Deps are the external collaborators the engine does not construct itself.
// History, Remote, Recaller, and Catalog may be nil; the pipeline runs
// without them.
type Deps struct {
	Sampler     *sensor.Sampler
	Windows     sensor.WindowSource
	Behavior    *sensor.BehaviorWindow
	Capturer    capture.Capturer
	Reactor     Reactor
	Moods       *mood.Engine
	History     HistorySink
	Remote      *memory.Client
	Recaller    *memory.Recaller
	Broadcaster *server.Broadcaster
	Catalog     Categorizer
}

// Engine runs the event pipeline. Trigger events funnel through a single
// queue so scoring happens in timestamp order.
type Engine struct {
	mu  sync.RWMutex
	cfg *config.Config

	sampler   *sensor.Sampler
	windows   sensor.WindowSource
	behavior  *sensor.BehaviorWindow
	detector  *trigger.Detector
	accum     *accumulator.Accumulator
	scheduler *capture.Scheduler
	reactor   Reactor
	moods     *mood.Engine
	histories HistorySink
	remote    *memory.Client
	recaller  *memory.Recaller
	broadcast *server.Broadcaster
	catalog   Categorizer

	events chan models.TriggerEvent

	lastSample       models.RawSample
	haveSample       bool
	lastReaction     *models.Reaction
	lastReactionMood models.Mood
}

// New builds the engine and its internal pipeline stages from cfg.
func New(cfg *config.Config, deps Deps) *Engine {
	e := &Engine{
		cfg:       cfg,
		sampler:   deps.Sampler,
		windows:   deps.Windows,
		behavior:  deps.Behavior,
		reactor:   deps.Reactor,
		moods:     deps.Moods,
		histories: deps.History,
		remote:    deps.Remote,
		recaller:  deps.Recaller,
		broadcast: deps.Broadcaster,
		catalog:   deps.Catalog,
		events:    make(chan models.TriggerEvent, 64),
	}

	e.detector = trigger.New(triggerConfig(cfg), e.enqueue)
	e.accum = accumulator.New(accumulatorConfig(cfg))
	e.scheduler = capture.NewScheduler(captureConfig(cfg), deps.Capturer, e.foreground, e.recallSnippets)
	return e
}

func triggerConfig(cfg *config.Config) trigger.Config {
	return trigger.Config{
		DwellTimeout:      cfg.DwellTimeout(),
		IdleThreshold:     cfg.IdleThreshold(),
		IdleRearmBelow:    cfg.IdleRearmBelow(),
		BackspaceRatio:    cfg.BackspaceRatio,
		ClicksPerMinute:   cfg.ClicksPerMinute,
		TypingBurstKPM:    cfg.TypingBurstKPM,
		RapidSwitchCount:  cfg.RapidSwitchCount,
		RapidSwitchWindow: cfg.RapidSwitchWin(),
	}
}

func accumulatorConfig(cfg *config.Config) accumulator.Config {
	return accumulator.Config{
		Weights:        cfg.ReasonWeights,
		AcceptBar:      cfg.AcceptBar,
		MinSpacing:     cfg.MinSpacing(),
		MaxInterval:    cfg.MaxInterval(),
		SuppressWindow: cfg.SuppressWindow(),
	}
}

func captureConfig(cfg *config.Config) capture.Config {
	return capture.Config{
		DelayMin:      cfg.CaptureDelayMin(),
		DelayMax:      cfg.CaptureDelayMax(),
		MemoryTimeout: cfg.MemoryTimeout(),
	}
}

// Reload pushes changed thresholds into the running pipeline stages. Called
// by the config watcher.
func (e *Engine) Reload(cfg *config.Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	e.detector.UpdateConfig(triggerConfig(cfg))
	e.accum.UpdateConfig(accumulatorConfig(cfg))
	log.Info().Msg("Applied updated thresholds")
}

func (e *Engine) config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Run drives the pipeline until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.windows.Subscribe(e.onWindowNotification)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.sampleLoop(ctx) })
	g.Go(func() error { return e.eventLoop(ctx) })
	g.Go(func() error { return e.memoryLoop(ctx) })
	g.Go(func() error { return e.maintenanceLoop(ctx) })
	return g.Wait()
}

// enqueue is the detector's emit callback. Drops on overflow rather than
// blocking the detector; a full queue means the pipeline is already saturated
// with fresher context on the way.
func (e *Engine) enqueue(ev models.TriggerEvent) {
	select {
	case e.events <- ev:
	default:
		log.Warn().Str("reason", string(ev.Reason)).Msg("Event queue full, dropping trigger")
	}
}

// onWindowNotification handles the OS focus-change push.
func (e *Engine) onWindowNotification() {
	appName, title, err := e.windows.Foreground()
	if err != nil {
		log.Debug().Err(err).Msg("Foreground read failed on window notification")
		return
	}
	e.detector.OnWindowEvent(appName, title, e.sampler.IdleSeconds())
}

func (e *Engine) sampleLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.config().SampleInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick runs one sampling pass: behavior stats, mood evaluation, trigger
// observation.
func (e *Engine) tick() {
	sample := e.sampler.Sample()
	e.behavior.Push(sample)
	stats := e.behavior.Stats()
	idle := e.sampler.IdleSeconds()

	e.mu.Lock()
	prev := e.lastSample
	hadPrev := e.haveSample
	e.lastSample = sample
	e.haveSample = true
	lastMood := e.lastReactionMood
	e.mu.Unlock()

	late, work := models.TimeOfDayFlags(sample.At)
	bundle := models.SignalBundle{
		Sample:           sample,
		Behavior:         stats,
		AppCategory:      e.categorize(sample.AppName),
		IsLateNight:      late,
		IsWorkHours:      work,
		LastReactionMood: lastMood,
	}

	cause := mood.CauseSignal
	if hadPrev {
		cause = mood.DetectOverride(prev, sample)
	}
	if e.moods.Apply(mood.Derive(bundle), cause) {
		e.publishState()
	}

	e.detector.Observe(sample, idle, stats)
}

func (e *Engine) categorize(appName string) string {
	if e.catalog == nil {
		return ""
	}
	return e.catalog.Categorize(appName)
}

// eventLoop is the single consumer of the trigger queue, so events are
// scored strictly in arrival order.
func (e *Engine) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			acceptance, ok := e.accum.Add(ev, e.behavior.Stats())
			if !ok {
				continue
			}
			e.scheduler.Schedule(ctx, *acceptance, func(payload *capture.Payload, err error) {
				e.completeCapture(ctx, payload, err)
			})
		}
	}
}

// completeCapture runs when the capture task finishes, canceled or not.
// Every path out of here clears the in-flight flag.
func (e *Engine) completeCapture(ctx context.Context, payload *capture.Payload, err error) {
	if err != nil {
		e.accum.EndFlight()
		if !errors.Is(err, capture.ErrCanceled) {
			log.Warn().Err(err).Msg("Capture task failed")
		}
		return
	}

	rctx, cancel := context.WithTimeout(ctx, e.config().ReasonTimeout())
	defer cancel()

	sample := e.snapshotSample()
	current := e.moods.Current().Mood
	reaction, err := e.reactor.React(rctx, sample, payload, current)
	e.accum.EndFlight()
	if err != nil {
		// Discarded wholesale: no retry, no partial rendering, mood untouched.
		log.Warn().Err(err).Str("reason", string(payload.Event.Reason)).Msg("Reaction discarded")
		return
	}

	e.publishReaction(reaction, payload, sample)
}

// publishReaction applies the reaction's mood tag, persists it, and pushes it
// to the presentation layer.
func (e *Engine) publishReaction(reaction *models.Reaction, payload *capture.Payload, sample models.RawSample) {
	e.moods.Apply(reaction.Mood, mood.CauseReaction)

	e.mu.Lock()
	e.lastReaction = reaction
	e.lastReactionMood = reaction.Mood
	e.mu.Unlock()

	if e.histories != nil {
		row := &history.ReactionRow{
			Reason:      string(payload.Event.Reason),
			AppName:     sample.AppName,
			WindowTitle: privacy.Clean(sample.WindowTitle),
			Score:       payload.Summary.TotalScore,
			Mood:        string(reaction.Mood),
			Expression:  string(reaction.Expression),
			Placement:   string(reaction.Placement),
			Message:     reaction.Message,
			CPUPercent:  int(sample.CPUFraction * 100),
			RAMPercent:  int(sample.MemFraction * 100),
		}
		if pct := sample.BatteryPercent(); pct >= 0 {
			row.BatteryPercent.Int64 = int64(pct)
			row.BatteryPercent.Valid = true
		}
		if payload.Snapshot != nil {
			row.SnapshotPath.String = payload.Snapshot.Path
			row.SnapshotPath.Valid = true
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.histories.Append(ctx, row); err != nil {
			log.Warn().Err(err).Msg("Failed to persist reaction")
		}
	}

	if e.broadcast != nil {
		e.broadcast.Broadcast("reaction", reaction)
	}

	e.storeMemory(sample, reaction)
}

// publishState pushes the current state snapshot to stream clients after a
// mood transition.
func (e *Engine) publishState() {
	if e.broadcast == nil {
		return
	}
	snapshot, err := e.Snapshot(context.Background())
	if err != nil {
		return
	}
	e.broadcast.Broadcast("state", snapshot)
}

// memoryLoop periodically pushes ambient state to the memory service.
// Best-effort: failures are swallowed by the client.
func (e *Engine) memoryLoop(ctx context.Context) error {
	if e.remote == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(memoryStoreInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.mu.RLock()
			sample := e.lastSample
			have := e.haveSample
			reaction := e.lastReaction
			e.mu.RUnlock()
			if !have || reaction == nil {
				continue
			}
			e.storeMemory(sample, reaction)
		}
	}
}

// maintenanceLoop prunes reaction rows past the retention span, once at
// startup and then hourly.
func (e *Engine) maintenanceLoop(ctx context.Context) error {
	if e.histories == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		e.pruneHistory(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) pruneHistory(ctx context.Context) {
	retention := e.config().HistoryRetention()
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention).UnixMilli()
	removed, err := e.histories.Prune(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("History prune failed")
		return
	}
	if removed > 0 {
		log.Info().Int64("rows", removed).Msg("Pruned expired reaction history")
	}
}

func (e *Engine) storeMemory(sample models.RawSample, reaction *models.Reaction) {
	if e.remote == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.config().MemoryTimeout())
	defer cancel()

	metrics := memory.MetricsRecord{
		CPUPercent: int(sample.CPUFraction * 100),
		RAMPercent: int(sample.MemFraction * 100),
		IsCharging: sample.Charging,
		ActiveApp:  privacy.Clean(sample.AppName),
		Hour:       sample.At.Hour(),
		Minute:     sample.At.Minute(),
	}
	if pct := sample.BatteryPercent(); pct >= 0 {
		level := int(pct)
		metrics.BatteryPercent = &level
	}
	e.remote.Store(ctx, metrics, memory.ReactionRecord{
		Message: reaction.Message,
		Mood:    string(reaction.Mood),
	})
}

func (e *Engine) snapshotSample() models.RawSample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSample
}

// foreground feeds the capture scheduler's retarget read.
func (e *Engine) foreground() (string, string, error) {
	return e.windows.Foreground()
}

// recallSnippets feeds the capture scheduler's memory fetch.
func (e *Engine) recallSnippets(ctx context.Context) []memory.Snippet {
	if e.recaller == nil {
		return nil
	}
	return e.recaller.Recall(ctx, e.snapshotSample(), e.moods.Current().Mood)
}

// Pet handles a pet click. It holds the same in-flight slot as triggered
// reasoning calls, so a pet during an outstanding call is refused.
func (e *Engine) Pet(ctx context.Context) (*models.Reaction, error) {
	if !e.accum.TryBeginFlight() {
		return nil, ErrBusy
	}
	defer e.accum.EndFlight()

	rctx, cancel := context.WithTimeout(ctx, e.config().ReasonTimeout())
	defer cancel()

	reaction, err := e.reactor.PetReact(rctx, e.moods.Current().Mood)
	if err != nil {
		return nil, err
	}

	e.moods.Apply(reaction.Mood, mood.CauseReaction)
	e.mu.Lock()
	e.lastReaction = reaction
	e.lastReactionMood = reaction.Mood
	e.mu.Unlock()

	if e.broadcast != nil {
		e.broadcast.Broadcast("reaction", reaction)
	}
	return reaction, nil
}

// Snapshot implements the presentation API's state source.
func (e *Engine) Snapshot(ctx context.Context) (server.StateSnapshot, error) {
	state := e.moods.Current()

	e.mu.RLock()
	last := e.lastReaction
	e.mu.RUnlock()

	snapshot := server.StateSnapshot{
		Mood:         state.Mood,
		Emoji:        models.MoodEmoji[state.Mood],
		Since:        state.Since,
		Message:      models.DefaultMessages[state.Mood],
		LastReaction: last,
		Recent:       []server.RecentEntry{},
	}
	if last != nil {
		snapshot.Message = last.Message
	}

	if e.histories != nil {
		rows, err := e.histories.Recent(ctx, 5)
		if err != nil {
			return snapshot, err
		}
		for _, r := range rows {
			snapshot.Recent = append(snapshot.Recent, server.RecentEntry{
				Timestamp: r.CreatedAt,
				Mood:      r.Mood,
				Message:   r.Message,
			})
		}
		if counts, err := e.histories.CountByMood(ctx); err == nil && len(counts) > 0 {
			snapshot.MoodCounts = counts
		}
	}
	return snapshot, nil
}
