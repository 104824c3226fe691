// Package host holds the thin OS adapters behind the sensor and capture
// interfaces. Only the portable pieces live here; platform-specific sensor
// readers plug in behind the same interfaces, and anything unimplemented
// reports an error so the pipeline's substitution policies take over.
package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/hackerthon-gemini-agc/boni/internal/sensor"
)

// ErrNotSupported marks a sensor with no adapter on this platform.
var ErrNotSupported = errors.New("no host adapter on this platform")

// NullMetrics is the metrics source used when no platform reader is wired.
type NullMetrics struct{}

func (NullMetrics) Metrics() (sensor.Metrics, error) {
	return sensor.Metrics{}, ErrNotSupported
}

// NullInput is the input source used when no platform reader is wired.
type NullInput struct{}

func (NullInput) Counters() (int64, int64, int64, error) { return 0, 0, 0, ErrNotSupported }
func (NullInput) IdleSeconds() (float64, error)          { return 0, ErrNotSupported }

// StaticWindows is a window source with a fixed foreground and manual
// notification delivery. It stands in until a platform notifier is wired.
type StaticWindows struct {
	mu    sync.Mutex
	app   string
	title string
	fn    func()
}

// NewStaticWindows creates a window source reporting the given foreground.
func NewStaticWindows(app, title string) *StaticWindows {
	return &StaticWindows{app: app, title: title}
}

func (w *StaticWindows) Foreground() (string, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.app, w.title, nil
}

func (w *StaticWindows) Subscribe(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fn = fn
}

// SetForeground updates the reported foreground and fires the notification.
func (w *StaticWindows) SetForeground(app, title string) {
	w.mu.Lock()
	w.app = app
	w.title = title
	fn := w.fn
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// ExecCapturer shells out to the system screenshot tool. Window-scoped
// capture needs a window id lookup the portable adapter does not have, so
// CaptureWindow fails and the scheduler falls back to full screen.
type ExecCapturer struct {
	Dir     string        // snapshot directory, defaults to os.TempDir()
	Timeout time.Duration // per-invocation bound, defaults to 5s
}

func (c *ExecCapturer) CaptureWindow(_ context.Context, _ string) (string, error) {
	return "", fmt.Errorf("window-scoped capture: %w", ErrNotSupported)
}

func (c *ExecCapturer) CaptureScreen(ctx context.Context) (string, error) {
	if runtime.GOOS != "darwin" {
		return "", fmt.Errorf("screen capture: %w", ErrNotSupported)
	}

	dir := c.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	path := filepath.Join(dir, fmt.Sprintf("boni_snapshot_%d.jpg", time.Now().UnixMilli()))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := exec.CommandContext(ctx, "screencapture", "-x", "-t", "jpg", path).Run(); err != nil {
		return "", fmt.Errorf("screencapture: %w", err)
	}
	return path, nil
}
