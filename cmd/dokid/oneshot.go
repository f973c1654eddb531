package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eel-brah/kokorodoki/internal/config"
	"github.com/eel-brah/kokorodoki/internal/player"
	"github.com/eel-brah/kokorodoki/internal/render"
	"github.com/eel-brah/kokorodoki/internal/runtime"
	"github.com/eel-brah/kokorodoki/internal/segment"
	"github.com/eel-brah/kokorodoki/internal/synth"
)

// speakOnce plays a single payload through the full playback engine and
// returns when it finishes, without opening the command socket. With
// allVoices set it repeats the payload once per voice of the configured
// language.
func speakOnce(ctx context.Context, cfg config.Config, payload string, allVoices bool, logger *slog.Logger) error {
	utts, source, err := segment.Prepare(payload, logger)
	if err != nil {
		return err
	}
	logger.Info("speaking payload",
		slog.String("source", source), slog.Int("utterances", len(utts)))

	syn, err := runtime.NewSynthesizer(cfg.Synth, cfg.Player.SampleRate)
	if err != nil {
		return err
	}
	sink, err := runtime.NewSink(cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	ctrl := player.NewController(ctx, syn, sink, player.Options{
		Lookahead: cfg.Player.Lookahead,
		Gap:       time.Duration(cfg.Player.GapMS) * time.Millisecond,
		Language:  cfg.Player.Language,
		Voice:     cfg.Player.Voice,
		Speed:     cfg.Player.Speed,
	}, logger)
	defer ctrl.Close()

	if allVoices {
		logger.Info("sweeping voices", slog.String("language", cfg.Player.Language))
		return ctrl.SpeakAllVoices(ctx, utts, cfg.Player.Language)
	}
	if err := ctrl.Load(utts); err != nil {
		return err
	}
	return ctrl.Wait(ctx)
}

// renderToFile synthesizes a payload into a WAV file.
func renderToFile(ctx context.Context, cfg config.Config, payload, path string, logger *slog.Logger) error {
	utts, source, err := segment.Prepare(payload, logger)
	if err != nil {
		return err
	}
	logger.Info("rendering payload",
		slog.String("source", source), slog.String("output", path))

	syn, err := runtime.NewSynthesizer(cfg.Synth, cfg.Player.SampleRate)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	opts := render.Options{
		Params: synth.Params{
			Voice:    cfg.Player.Voice,
			Language: cfg.Player.Language,
			Speed:    cfg.Player.Speed,
		},
		SampleRate: cfg.Player.SampleRate,
		Gap:        time.Duration(cfg.Player.GapMS) * time.Millisecond,
	}
	if err := render.Render(ctx, syn, utts, f, opts, logger); err != nil {
		os.Remove(path)
		return err
	}
	logger.Info("render complete", slog.String("output", path))
	return nil
}
