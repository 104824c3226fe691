// Package capture implements the delayed context-snapshot step between an
// accepted trigger and the reasoning call. The delay lets the screen settle
// after the triggering action; the task is cancelable and retargetable, and
// its completion callback runs on every path so the in-flight flag upstream
// can never be left stuck.
package capture

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackerthon-gemini-agc/boni/internal/accumulator"
	"github.com/hackerthon-gemini-agc/boni/internal/memory"
	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// ErrCanceled reports a capture task canceled before completion.
var ErrCanceled = errors.New("capture canceled")

// Snapshot describes one captured image.
type Snapshot struct {
	ID           string
	Path         string
	Scope        Scope
	DelaySeconds float64
}

// Scope records how the snapshot was obtained.
type Scope string

const (
	ScopeWindow     Scope = "active_window"
	ScopeFullScreen Scope = "full_screen"
)

// Capturer takes the actual screenshots. Region capture may fail (window
// gone, permission denied); the scheduler falls back to full screen and then
// to an image-less payload.
type Capturer interface {
	CaptureWindow(ctx context.Context, appName string) (path string, err error)
	CaptureScreen(ctx context.Context) (path string, err error)
}

// ForegroundFunc reads the current foreground window, used to retarget the
// capture when focus moved during the delay.
type ForegroundFunc func() (appName, title string, err error)

// RecallFunc fetches memory snippets for the payload; best-effort.
type RecallFunc func(ctx context.Context) []memory.Snippet

// Payload is the assembled context bundle handed to the reasoning call.
type Payload struct {
	Event    models.TriggerEvent
	Summary  accumulator.Summary
	Snapshot *Snapshot // nil when the payload is image-less
	Memories []memory.Snippet
}

// Config holds the scheduler knobs.
type Config struct {
	DelayMin      time.Duration
	DelayMax      time.Duration
	MemoryTimeout time.Duration
}

// Scheduler runs delayed capture tasks, one per accepted event.
type Scheduler struct {
	cfg        Config
	capturer   Capturer
	foreground ForegroundFunc
	recall     RecallFunc
	randFloat  func() float64
}

// NewScheduler creates a scheduler. capturer may be nil (always image-less),
// recall may be nil (no memories).
func NewScheduler(cfg Config, capturer Capturer, foreground ForegroundFunc, recall RecallFunc) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		capturer:   capturer,
		foreground: foreground,
		recall:     recall,
		randFloat:  rand.Float64,
	}
}

// SetRandFloat overrides the delay jitter source. Test hook.
func (s *Scheduler) SetRandFloat(fn func() float64) { s.randFloat = fn }

// Task is one scheduled capture. Cancel aborts the delay; the completion
// callback still fires, with ErrCanceled.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel aborts the task if it has not completed.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the completion callback has run.
func (t *Task) Wait() { <-t.done }

// Schedule starts the delay-then-capture sequence for an accepted event and
// invokes complete exactly once with the assembled payload or an error.
func (s *Scheduler) Schedule(ctx context.Context, acc accumulator.Acceptance, complete func(*Payload, error)) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(task.done)
		defer cancel()

		payload, err := s.run(taskCtx, acc)
		complete(payload, err)
	}()

	return task
}

func (s *Scheduler) run(ctx context.Context, acc accumulator.Acceptance) (*Payload, error) {
	delay := s.drawDelay()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ErrCanceled
	case <-timer.C:
	}

	payload := &Payload{Event: acc.Event, Summary: acc.Summary}

	// The foreground may have moved during the delay; retarget the capture
	// to whatever is focused now so the snapshot reflects settled state.
	target := acc.Event.AppName
	if s.foreground != nil {
		if app, title, err := s.foreground(); err == nil && app != "" {
			if app != target {
				log.Debug().Str("from", target).Str("to", app).Msg("Capture retargeted")
			}
			target = app
			payload.Event.AppName = app
			payload.Event.WindowTitle = title
		}
	}

	if snap := s.capture(ctx, target, delay); snap != nil {
		payload.Snapshot = snap
	}

	if ctx.Err() != nil {
		return nil, ErrCanceled
	}

	if s.recall != nil {
		recallCtx := ctx
		if s.cfg.MemoryTimeout > 0 {
			var cancel context.CancelFunc
			recallCtx, cancel = context.WithTimeout(ctx, s.cfg.MemoryTimeout)
			defer cancel()
		}
		payload.Memories = s.recall(recallCtx)
	}

	return payload, nil
}

// capture runs the fallback chain: window region, full screen, image-less.
// Capture failure is never fatal to the payload.
func (s *Scheduler) capture(ctx context.Context, appName string, delay time.Duration) *Snapshot {
	if s.capturer == nil {
		return nil
	}

	if path, err := s.capturer.CaptureWindow(ctx, appName); err == nil {
		return &Snapshot{
			ID:           uuid.NewString(),
			Path:         path,
			Scope:        ScopeWindow,
			DelaySeconds: delay.Seconds(),
		}
	} else {
		log.Debug().Err(err).Str("app", appName).Msg("Window capture failed, trying full screen")
	}

	if path, err := s.capturer.CaptureScreen(ctx); err == nil {
		return &Snapshot{
			ID:           uuid.NewString(),
			Path:         path,
			Scope:        ScopeFullScreen,
			DelaySeconds: delay.Seconds(),
		}
	} else {
		log.Warn().Err(err).Msg("Full-screen capture failed, proceeding image-less")
	}

	return nil
}

func (s *Scheduler) drawDelay() time.Duration {
	min, max := s.cfg.DelayMin, s.cfg.DelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(s.randFloat()*float64(max-min))
}
