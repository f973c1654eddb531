package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eel-brah/kokorodoki/internal/voices"
)

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type PlayerConfig struct {
	Lookahead  int     `yaml:"lookahead"`
	GapMS      int     `yaml:"gap_ms"`
	SampleRate int     `yaml:"sample_rate"`
	Language   string  `yaml:"language"`
	Voice      string  `yaml:"voice"`
	Speed      float64 `yaml:"speed"`
}

type SynthConfig struct {
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type AudioConfig struct {
	Enabled         bool `yaml:"enabled"`
	FramesPerBuffer int  `yaml:"frames_per_buffer"`
}

type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxEntries    int    `yaml:"max_entries"`
}

type EventsConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	Name      string          `yaml:"name"`
	Listen    ListenConfig    `yaml:"listen"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Player    PlayerConfig    `yaml:"player"`
	Synth     SynthConfig     `yaml:"synth"`
	Audio     AudioConfig     `yaml:"audio"`
	History   HistoryConfig   `yaml:"history"`
	Events    EventsConfig    `yaml:"events"`
}

func Default() Config {
	return Config{
		Name: "dokid",
		Listen: ListenConfig{
			Host: "127.0.0.1",
			Port: 5561,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Bind:    "127.0.0.1",
			Port:    8585,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
		},
		Player: PlayerConfig{
			Lookahead:  2,
			GapMS:      200,
			SampleRate: voices.SampleRate,
			Language:   voices.DefaultLanguage,
			Voice:      voices.DefaultVoice,
			Speed:      voices.DefaultSpeed,
		},
		Synth: SynthConfig{
			Mode:      "exec",
			Command:   "kokoro-worker",
			TimeoutMS: 45000,
		},
		Audio: AudioConfig{
			Enabled:         true,
			FramesPerBuffer: 1024,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "./data/kokorodoki-history.db",
			RetentionDays: 30,
			MaxEntries:    1024,
		},
		Events: EventsConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Running without a config file is the common case.
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Name, "KDOKI_NAME")
	overrideString(&cfg.Listen.Host, "KDOKI_LISTEN_HOST")
	overrideInt(&cfg.Listen.Port, "KDOKI_LISTEN_PORT")
	overrideBool(&cfg.HTTP.Enabled, "KDOKI_HTTP_ENABLED")
	overrideString(&cfg.HTTP.Bind, "KDOKI_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "KDOKI_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "KDOKI_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "KDOKI_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "KDOKI_TELEMETRY_OTLP_INSECURE")
	overrideInt(&cfg.Player.Lookahead, "KDOKI_PLAYER_LOOKAHEAD")
	overrideInt(&cfg.Player.GapMS, "KDOKI_PLAYER_GAP_MS")
	overrideInt(&cfg.Player.SampleRate, "KDOKI_PLAYER_SAMPLE_RATE")
	overrideString(&cfg.Player.Language, "KDOKI_PLAYER_LANGUAGE")
	overrideString(&cfg.Player.Voice, "KDOKI_PLAYER_VOICE")
	overrideFloat(&cfg.Player.Speed, "KDOKI_PLAYER_SPEED")
	overrideString(&cfg.Synth.Mode, "KDOKI_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "KDOKI_SYNTH_COMMAND")
	overrideInt(&cfg.Synth.TimeoutMS, "KDOKI_SYNTH_TIMEOUT_MS")
	overrideBool(&cfg.Audio.Enabled, "KDOKI_AUDIO_ENABLED")
	overrideInt(&cfg.Audio.FramesPerBuffer, "KDOKI_AUDIO_FRAMES_PER_BUFFER")
	overrideBool(&cfg.History.Enabled, "KDOKI_HISTORY_ENABLED")
	overrideString(&cfg.History.Path, "KDOKI_HISTORY_PATH")
	overrideInt(&cfg.History.RetentionDays, "KDOKI_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxEntries, "KDOKI_HISTORY_MAX_ENTRIES")
	overrideBool(&cfg.Events.Enabled, "KDOKI_EVENTS_ENABLED")
	overrideBool(&cfg.Events.Embedded, "KDOKI_EVENTS_EMBEDDED")
	overrideInt(&cfg.Events.Port, "KDOKI_EVENTS_PORT")
	overrideStringSlice(&cfg.Events.Servers, "KDOKI_EVENTS_SERVERS")
	overrideInt(&cfg.Events.ConnectTimeout, "KDOKI_EVENTS_CONNECT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// Validate checks the config for values the daemon cannot run with.
func (cfg Config) Validate() error {
	if cfg.Name == "" {
		return errors.New("name must not be empty")
	}
	if cfg.Listen.Host == "" {
		return errors.New("listen.host must not be empty")
	}
	if cfg.Listen.Port <= 0 || cfg.Listen.Port > 65535 {
		return errors.New("listen.port must be between 1 and 65535")
	}
	if cfg.HTTP.Enabled {
		if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
			return errors.New("http.port must be between 1 and 65535")
		}
	}
	if cfg.Player.Lookahead < 1 {
		return errors.New("player.lookahead must be >= 1")
	}
	if cfg.Player.GapMS < 0 {
		return errors.New("player.gap_ms must be >= 0")
	}
	if cfg.Player.SampleRate <= 0 {
		return errors.New("player.sample_rate must be positive")
	}
	if !voices.IsLanguage(cfg.Player.Language) {
		return fmt.Errorf("player.language %q is not a known language code", cfg.Player.Language)
	}
	if !voices.IsVoice(cfg.Player.Voice) {
		return fmt.Errorf("player.voice %q is not a known voice", cfg.Player.Voice)
	}
	if !voices.ValidSpeed(cfg.Player.Speed) {
		return fmt.Errorf("player.speed must be between %v and %v", voices.MinSpeed, voices.MaxSpeed)
	}
	switch cfg.Synth.Mode {
	case "mock", "exec":
	default:
		return errors.New("synth.mode must be one of mock|exec")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if cfg.History.Enabled {
		if cfg.History.Path == "" {
			return errors.New("history.path must not be empty when history is enabled")
		}
		if cfg.History.RetentionDays < 0 {
			return errors.New("history.retention_days must be >= 0")
		}
	}
	if cfg.Events.Enabled {
		if cfg.Events.Embedded {
			if cfg.Events.Port <= 0 || cfg.Events.Port > 65535 {
				return errors.New("events.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Events.Servers) == 0 {
			return errors.New("events.servers must not be empty when embedded mode is disabled")
		}
	}
	return nil
}
