package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/zsiec/duet/internal/audio"
	"github.com/zsiec/duet/internal/backend/ffmpeg"
	"github.com/zsiec/duet/internal/backend/oto"
	"github.com/zsiec/duet/internal/backend/sdl"
	"github.com/zsiec/duet/internal/compositor"
	"github.com/zsiec/duet/internal/player"
)

var version = "dev"

// SDL must be driven from the main OS thread.
func init() { runtime.LockOSThread() }

func main() {
	debug := os.Getenv("DEBUG") != ""
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	ffmpeg.SetLogger(slog.Default(), debug)

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config) error {
	log := slog.Default()
	log.Info("duet starting",
		"version", version,
		"primary", cfg.primary,
		"secondary", cfg.secondary,
		"size", fmt.Sprintf("%dx%d", cfg.width, cfg.height),
		"sync", cfg.sync,
		"demuxer", cfg.demuxer,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	win, err := sdl.Open("duet", cfg.width, cfg.height, log)
	if err != nil {
		return err
	}
	defer win.Close()

	newInstance := func(name, path string, small bool) *player.Instance {
		return player.New(player.Config{
			Name:           name,
			Path:           path,
			Small:          small,
			Open:           openerFor(cfg.demuxer, path),
			Codecs:         ffmpeg.Codecs{},
			Screen:         win,
			AudioFormat:    cfg.format,
			Sync:           cfg.sync,
			SnapshotDir:    cfg.snapshotDir,
			SnapshotFormat: cfg.snapshotFormat,
			Log:            log,
		})
	}
	primary := newInstance("primary", cfg.primary, false)
	secondary := newInstance("secondary", cfg.secondary, true)
	if err := primary.Open(); err != nil {
		return fmt.Errorf("opening %s: %w", cfg.primary, err)
	}
	if err := secondary.Open(); err != nil {
		return fmt.Errorf("opening %s: %w", cfg.secondary, err)
	}

	comp := compositor.New(win, primary, secondary, log)
	dev, err := oto.Open(cfg.format, audio.DeviceBufferSamples, comp, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		runErr = comp.Run(ctx)
	}()
	win.Loop(done, comp)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("playback failed", "error", runErr)
		return runErr
	}
	log.Info("duet stopped")
	return nil
}
