// Package main provides the deck player entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/infra/config"
	"github.com/osa030/19deck/internal/infra/logger"
	"github.com/osa030/19deck/internal/infra/media"
	"github.com/osa030/19deck/internal/ui/console"
)

var (
	autoplaySet, loopSet, volumeSet bool

	app        = kingpin.New("19deck", "19deck terminal audio player")
	configPath = app.Flag("config", "Path to config file").Default("config/deck.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
	srcFlag    = app.Flag("src", "Audio source: file path or http(s) URL").String()
	autoplay   = app.Flag("autoplay", "Start playback as soon as possible").IsSetByUser(&autoplaySet).Bool()
	loop       = app.Flag("loop", "Restart from the beginning when the track ends").IsSetByUser(&loopSet).Bool()
	volume     = app.Flag("volume", "Initial volume between 0 and 1").IsSetByUser(&volumeSet).Float64()
	output     = app.Flag("output", "Output type (speaker, none)").String()

	playCmd = app.Command("play", "Play a track (default)").Default()
	playSrc = playCmd.Arg("src", "Audio source, overrides --src").String()

	watchCmd = app.Command("watch", "Play a track without a prompt and print every notification")
	watchSrc = watchCmd.Arg("src", "Audio source, overrides --src").String()

	probeCmd = app.Command("probe", "Load a track without audio output and print its duration")
	probeSrc = probeCmd.Arg("src", "Audio source: file path or http(s) URL").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Debug().Msgf("Loading config from %s", *configPath)
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case probeCmd.FullCommand():
		err = probe(ctx, cfg, *probeSrc)
	case watchCmd.FullCommand():
		if *watchSrc != "" {
			*srcFlag = *watchSrc
		}
		if err := applyFlags(cfg); err != nil {
			zlog.Fatal().Msgf("Invalid flags: %v", err)
		}
		// Without a prompt the first interaction never comes from a user
		cfg.Player.AutoPlay = true
		err = run(ctx, cfg, loggerConfig, true)
	default:
		if err := applyFlags(cfg); err != nil {
			zlog.Fatal().Msgf("Invalid flags: %v", err)
		}
		err = run(ctx, cfg, loggerConfig, false)
	}
	if err != nil {
		zlog.Error().Msgf("%v", err)
		closer.Close()
		os.Exit(1)
	}
}

// applyFlags overrides config values with command-line flags.
func applyFlags(cfg *config.Config) error {
	if *srcFlag != "" {
		cfg.Player.Source = *srcFlag
	}
	if *playSrc != "" {
		cfg.Player.Source = *playSrc
	}
	if autoplaySet {
		cfg.Player.AutoPlay = *autoplay
	}
	if loopSet {
		cfg.Player.Loop = *loop
	}
	if volumeSet {
		v := *volume
		cfg.Player.Volume = &v
	}
	if *output != "" {
		cfg.Output.Type = *output
	}
	if cfg.Player.Source == "" {
		return errors.New("no source: pass --src or set player.source")
	}
	return cfg.Validate()
}

// run mounts the controller and serves the console, or the watcher, until
// quit, the end of the track, or a signal.
func run(ctx context.Context, cfg *config.Config, loggerConfig logger.Config, watch bool) error {
	handle, err := media.New(cfg.Output)
	if err != nil {
		return errors.Wrap(err, "failed to create media handle")
	}

	ctrl := playback.NewController(handle, playback.Config{
		Source:   cfg.Player.Source,
		AutoPlay: cfg.Player.AutoPlay,
		Loop:     cfg.Player.Loop,
		Volume:   cfg.InitialVolume(),
		Messages: messages(cfg),
	})
	defer ctrl.Unmount()

	hub := notification.NewManager(0)
	defer hub.Close()

	var watcher *console.Watcher
	if watch {
		watcher = console.NewWatcher(ctrl, os.Stdout, 30)
		id := hub.Subscribe(watcher)
		defer hub.Unsubscribe(id)
	}
	go hub.Pump(ctx, ctrl.Events())

	loadCtx := ctx
	if timeout := cfg.LoadTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	zlog.Info().Msgf("Opening %s (output=%s)", cfg.Player.Source, cfg.Output.Type)
	if err := ctrl.Mount(loadCtx); err != nil {
		return errors.Wrap(err, "failed to mount player")
	}

	if watch {
		if err := watcher.Wait(ctx); err != nil {
			return err
		}
		zlog.Info().Msg("Player stopped")
		return nil
	}

	consoleConfig := console.Config{
		VolumeStep: cfg.Player.VolumeStep,
	}
	if loggerConfig.Output == "stderr" {
		consoleConfig.AttachLogs = func(w io.Writer) {
			loggerConfig.Writer = w
			if _, err := logger.Init(loggerConfig); err != nil {
				zlog.Warn().Msgf("Failed to attach logger to the terminal: %v", err)
			}
		}
	}

	if err := console.Run(ctx, ctrl, hub, consoleConfig); err != nil {
		return errors.Wrap(err, "console error")
	}

	zlog.Info().Msg("Player stopped")
	return nil
}

// probe loads src without audio output and prints its duration.
func probe(ctx context.Context, cfg *config.Config, src string) error {
	if timeout := cfg.LoadTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	h, err := media.NewHeadless(cfg.Output.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to create probe handle")
	}
	defer h.Close()

	result := make(chan playback.Signal, 1)
	unsubscribe := h.Subscribe(func(sig playback.Signal) {
		if sig.Type != playback.SignalMetadataLoaded && sig.Type != playback.SignalError {
			return
		}
		select {
		case result <- sig:
		default:
		}
	})
	defer unsubscribe()

	h.Load(ctx, src)

	select {
	case sig := <-result:
		if sig.Err != nil {
			return errors.Wrapf(sig.Err, "%s", cfg.GetMessage(sig.Err.Kind.String()))
		}
		fmt.Printf("%s\t%s\t%v\n", src, playback.FormatDuration(sig.Duration), sig.Duration)
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "probe did not finish")
	}
}

// messages maps the configured texts onto banner messages.
func messages(cfg *config.Config) playback.Messages {
	return playback.Messages{
		Aborted:        cfg.GetMessage(playback.ErrorAborted.String()),
		Network:        cfg.GetMessage(playback.ErrorNetwork.String()),
		Decode:         cfg.GetMessage(playback.ErrorDecode.String()),
		Unsupported:    cfg.GetMessage(playback.ErrorSrcNotSupported.String()),
		Default:        cfg.GetMessage(playback.ErrorUnknown.String()),
		PlaybackFailed: cfg.GetMessage(playback.ErrorPlayRejected.String()),
		AutoplayFailed: cfg.GetMessage("autoplay_failed"),
	}
}
