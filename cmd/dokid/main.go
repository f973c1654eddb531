// Command dokid is the text-to-speech daemon. Without flags it serves the
// command socket until told to exit; with -text, -file, or -clipboard it
// speaks one payload and exits; with -output it renders to a WAV file
// instead of playing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eel-brah/kokorodoki/internal/client"
	"github.com/eel-brah/kokorodoki/internal/config"
	"github.com/eel-brah/kokorodoki/internal/runtime"
	"github.com/eel-brah/kokorodoki/internal/voices"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
		text        string
		file        string
		clipboard   bool
		output      string
		voice       string
		language    string
		speed       float64
		allVoices   bool
	)

	flag.StringVar(&configPath, "config", "kokorodoki.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&text, "text", "", "Speak this text once and exit")
	flag.StringVar(&file, "file", "", "Speak the contents of this file once and exit")
	flag.BoolVar(&clipboard, "clipboard", false, "Speak the clipboard contents once and exit")
	flag.StringVar(&output, "output", "", "Render to this WAV file instead of playing")
	flag.StringVar(&voice, "voice", "", "Voice override for one-shot mode")
	flag.StringVar(&language, "language", "", "Language override for one-shot mode")
	flag.Float64Var(&speed, "speed", 0, "Speed override for one-shot mode")
	flag.BoolVar(&allVoices, "all-voices", false, "Speak the one-shot payload once per voice of the language")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Telemetry.LogLevel)

	if voice != "" {
		cfg.Player.Voice = voice
	}
	if language != "" {
		cfg.Player.Language = language
		if voice == "" {
			cfg.Player.Voice = voices.DefaultFor(language)
		}
	}
	if speed != 0 {
		cfg.Player.Speed = speed
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	payload, oneShot, err := resolvePayload(ctx, text, file, clipboard)
	if err != nil {
		logger.Error("no payload", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if allVoices && (!oneShot || output != "") {
		fmt.Fprintln(os.Stderr, "-all-voices requires -text, -file, or -clipboard and cannot render to a file")
		os.Exit(1)
	}

	switch {
	case output != "":
		if !oneShot {
			fmt.Fprintln(os.Stderr, "-output requires -text, -file, or -clipboard")
			os.Exit(1)
		}
		err = renderToFile(ctx, cfg, payload, output, logger)
	case oneShot:
		err = speakOnce(ctx, cfg, payload, allVoices, logger)
	default:
		err = runtime.New(cfg, version, logger).Start(ctx)
	}
	if err != nil {
		logger.Error("exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// resolvePayload picks the one-shot payload from the mutually exclusive
// sources. All empty means daemon mode.
func resolvePayload(ctx context.Context, text, file string, clipboard bool) (string, bool, error) {
	set := 0
	if text != "" {
		set++
	}
	if file != "" {
		set++
	}
	if clipboard {
		set++
	}
	if set > 1 {
		return "", false, fmt.Errorf("-text, -file, and -clipboard are mutually exclusive")
	}

	switch {
	case text != "":
		return text, true, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("read %s: %w", file, err)
		}
		return string(data), true, nil
	case clipboard:
		payload, err := client.ReadClipboard(ctx)
		if err != nil {
			return "", false, err
		}
		return payload, true, nil
	}
	return "", false, nil
}
