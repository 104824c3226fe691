// Package main provides the boni daemon entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/hackerthon-gemini-agc/boni/internal/app"
	"github.com/hackerthon-gemini-agc/boni/internal/appcat"
	"github.com/hackerthon-gemini-agc/boni/internal/brain"
	"github.com/hackerthon-gemini-agc/boni/internal/config"
	"github.com/hackerthon-gemini-agc/boni/internal/history"
	"github.com/hackerthon-gemini-agc/boni/internal/host"
	"github.com/hackerthon-gemini-agc/boni/internal/memory"
	"github.com/hackerthon-gemini-agc/boni/internal/mood"
	"github.com/hackerthon-gemini-agc/boni/internal/sensor"
	"github.com/hackerthon-gemini-agc/boni/internal/server"
	"github.com/hackerthon-gemini-agc/boni/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	httpAddr := flag.String("http", "", "Presentation API address (default from config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required (env or config file)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	// Reaction history (migrations run automatically).
	store, err := history.NewStore(history.Config{
		Path:     config.DBPath(),
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history store")
	}
	defer store.Close()

	// Long-term memory service (optional).
	var remote *memory.Client
	if cfg.MemoryURL != "" {
		remote = memory.NewClient(cfg.MemoryURL, cfg.UserID, cfg.MemoryTimeout())
		log.Info().Str("url", cfg.MemoryURL).Msg("Memory service configured")
	} else {
		log.Info().Msg("No memory service configured, recall uses local history only")
	}
	recaller := memory.NewRecaller(remote, store, cfg.RecallTopK)

	// Gemini brain.
	reactor, err := brain.New(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reasoning client")
	}

	// App category registry.
	catalog, err := appcat.Load(config.AppCategoriesPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load app categories")
	}

	// Host adapters. Platform sensor readers plug in behind these interfaces;
	// the nulls keep the pipeline honest about what it cannot read.
	windows := host.NewStaticWindows("", "")
	sampler := sensor.NewSampler(host.NullMetrics{}, windows, host.NullInput{}, nil)
	behavior := sensor.NewBehaviorWindow(60 * time.Second)

	broadcaster := server.NewBroadcaster()
	engine := app.New(cfg, app.Deps{
		Sampler:     sampler,
		Windows:     windows,
		Behavior:    behavior,
		Capturer:    &host.ExecCapturer{},
		Reactor:     reactor,
		Moods:       mood.NewEngine(cfg.MoodMinDwell()),
		History:     store,
		Remote:      remote,
		Recaller:    recaller,
		Broadcaster: broadcaster,
		Catalog: app.CategorizerFunc(func(name string) string {
			return string(catalog.Categorize(name))
		}),
	})

	startConfigWatcher(engine)

	api := server.New(cfg.HTTPAddr, engine, engine, broadcaster)

	log.Info().
		Str("version", Version).
		Str("addr", cfg.HTTPAddr).
		Str("model", cfg.Model).
		Msg("Starting boni daemon")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return api.Run(ctx) })

	if err := g.Wait(); err != nil && !isShutdown(err) {
		log.Fatal().Err(err).Msg("Daemon error")
	}
	log.Info().Msg("Stopped")
}

// startConfigWatcher reloads thresholds when the config file changes.
func startConfigWatcher(engine *app.Engine) {
	path := config.ConfigPath()
	w, err := watcher.New(path, func() {
		cfg, err := config.Load()
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		engine.Reload(cfg)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
		return
	}
	log.Info().Str("path", path).Msg("Config file watcher started")
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
