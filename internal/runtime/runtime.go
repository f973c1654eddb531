// Package runtime wires the daemon together: synthesizer, audio sink,
// playback controller, command socket, history store, event bus, and the
// observability HTTP endpoint.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eel-brah/kokorodoki/internal/audio"
	"github.com/eel-brah/kokorodoki/internal/config"
	"github.com/eel-brah/kokorodoki/internal/events"
	"github.com/eel-brah/kokorodoki/internal/history"
	"github.com/eel-brah/kokorodoki/internal/player"
	"github.com/eel-brah/kokorodoki/internal/server"
	"github.com/eel-brah/kokorodoki/internal/synth"
)

type Runtime struct {
	cfg         config.Config
	version     string
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, version string, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
}

// Start runs the daemon until ctx is cancelled or an exit command
// arrives.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.version, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	syn, err := NewSynthesizer(r.cfg.Synth, r.cfg.Player.SampleRate)
	if err != nil {
		return err
	}

	sink, err := NewSink(r.cfg, r.logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	store, err := history.Open(ctx, r.cfg.History, r.logger.With(slog.String("component", "history")))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	var notifier player.Notifier
	if r.cfg.Events.Enabled {
		embedded, err := events.StartEmbedded(r.cfg.Events, r.logger)
		if err != nil {
			return err
		}
		defer embedded.Shutdown()

		pub, err := events.Connect(r.cfg.Events, r.logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifier = pub
	}

	ctrl := player.NewController(ctx, syn, sink, player.Options{
		Lookahead: r.cfg.Player.Lookahead,
		Gap:       time.Duration(r.cfg.Player.GapMS) * time.Millisecond,
		Language:  r.cfg.Player.Language,
		Voice:     r.cfg.Player.Voice,
		Speed:     r.cfg.Player.Speed,
		Notifier:  notifier,
	}, r.logger)
	defer ctrl.Close()

	var hist server.History
	if r.cfg.History.Enabled {
		hist = store
	}
	srv := server.New(ctrl, hist, r.logger)
	srv.OnExit = cancel
	addr := fmt.Sprintf("%s:%d", r.cfg.Listen.Host, r.cfg.Listen.Port)
	if err := srv.Start(addr); err != nil {
		return err
	}
	defer srv.Close()

	if r.cfg.HTTP.Enabled {
		r.startHTTP(metricsHandler)
	}

	r.ready.Store(true)
	r.logger.Info("daemon started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("daemon stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Runtime) startHTTP(metricsHandler http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("http endpoint listening", slog.String("addr", addr))
}

// NewSynthesizer builds the synthesizer selected by config.
func NewSynthesizer(cfg config.SynthConfig, sampleRate int) (synth.Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return synth.NewMockSynth(sampleRate), nil
	case "exec":
		return synth.NewExecSynth(cfg.Command, sampleRate, time.Duration(cfg.TimeoutMS)*time.Millisecond)
	default:
		return nil, fmt.Errorf("unknown synth mode %q", cfg.Mode)
	}
}

// NewSink builds the audio sink. With audio disabled the daemon still
// runs, pacing playback on a silent clock.
func NewSink(cfg config.Config, logger *slog.Logger) (audio.Sink, error) {
	if !cfg.Audio.Enabled {
		logger.Warn("audio output disabled, using silent sink")
		return audio.NewMockSink(), nil
	}
	return audio.NewPortAudioSink(cfg.Player.SampleRate, cfg.Audio.FramesPerBuffer, logger)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
