package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"seriesmgr/internal/collection"
	"seriesmgr/internal/config"
	"seriesmgr/internal/discovery"
	"seriesmgr/internal/logger"
	"seriesmgr/internal/store"
	"seriesmgr/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	logger.Log.Info().
		Str("data_dir", cfg.Data.Dir).
		Msg("seriesmgr starting")

	fs := afero.NewOsFs()
	engine := discovery.NewEngine(fs, nil, nil)
	st := store.New(fs, cfg.Data.Dir, discovery.NewMimeProber(fs), discovery.NewSHA256Hasher(fs))
	col := collection.New(fs, st)

	if err := col.LoadAll(nil); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load playlists")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scan.OnStartup {
		go scanAutoDiscoverPaths(ctx, col, engine)
	}

	var w *watcher.Watcher
	if cfg.Scan.WatchPaths {
		w, err = watcher.New(engine, nil, cfg.Scan.WatchDebounce)
		if err != nil {
			logger.Log.Error().Err(err).Msg("Failed to create path watcher, continuing without")
		} else {
			for _, name := range col.Names() {
				pl, err := col.Get(name)
				if err != nil {
					continue
				}
				if err := w.Watch(pl); err != nil {
					logger.Log.Warn().Err(err).Str("playlist", name).Msg("Failed to watch playlist roots")
				}
			}
			w.Start()
		}
	}

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down")

	if w != nil {
		w.Stop()
	}
	if err := col.SaveAll(); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to save playlists on shutdown")
		os.Exit(1)
	}
}

// scanAutoDiscoverPaths runs a startup discovery pass over every playlist's
// auto-discover roots, saving each playlist whose content changed
func scanAutoDiscoverPaths(ctx context.Context, col *collection.Collection, engine *discovery.Engine) {
	for _, name := range col.Names() {
		pl, err := col.Get(name)
		if err != nil {
			continue
		}

		auto := pl.Paths()[:0:0]
		for _, spec := range pl.Paths() {
			if spec.AutoDiscover {
				auto = append(auto, spec)
			}
		}
		if len(auto) == 0 {
			continue
		}

		progress, err := engine.Discover(ctx, pl, auto, nil)
		if err != nil {
			logger.Log.Warn().Err(err).Str("playlist", name).Msg("Startup discovery failed")
			continue
		}
		if progress.Added > 0 || progress.Relocated > 0 {
			if err := col.Save(name); err != nil {
				logger.Log.Error().Err(err).Str("playlist", name).Msg("Failed to save playlist after discovery")
			}
		}
	}
}
