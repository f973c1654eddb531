package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Listen.Port != 5561 {
		t.Errorf("unexpected default port %d", cfg.Listen.Port)
	}
	if cfg.Player.Speed != 1.2 {
		t.Errorf("unexpected default speed %v", cfg.Player.Speed)
	}
	if cfg.Player.SampleRate != 24000 {
		t.Errorf("unexpected default sample rate %d", cfg.Player.SampleRate)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got %v", err)
	}
	if cfg.Listen.Port != 5561 {
		t.Errorf("unexpected port %d", cfg.Listen.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kokorodoki.yaml")
	data := []byte(`
listen:
  port: 7001
player:
  voice: bf_emma
  language: b
  speed: 0.8
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Listen.Port != 7001 {
		t.Errorf("expected port 7001, got %d", cfg.Listen.Port)
	}
	if cfg.Player.Voice != "bf_emma" || cfg.Player.Language != "b" {
		t.Errorf("player overrides not applied: %+v", cfg.Player)
	}
	if cfg.Player.Speed != 0.8 {
		t.Errorf("expected speed 0.8, got %v", cfg.Player.Speed)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KDOKI_LISTEN_PORT", "6001")
	t.Setenv("KDOKI_PLAYER_SPEED", "1.5")
	t.Setenv("KDOKI_AUDIO_ENABLED", "false")
	t.Setenv("KDOKI_EVENTS_SERVERS", "nats://a:4222, nats://b:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Listen.Port != 6001 {
		t.Errorf("env port override not applied: %d", cfg.Listen.Port)
	}
	if cfg.Player.Speed != 1.5 {
		t.Errorf("env speed override not applied: %v", cfg.Player.Speed)
	}
	if cfg.Audio.Enabled {
		t.Error("env audio override not applied")
	}
	if len(cfg.Events.Servers) != 2 || cfg.Events.Servers[1] != "nats://b:4222" {
		t.Errorf("env servers override not applied: %v", cfg.Events.Servers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Listen.Port = -1 }},
		{"zero lookahead", func(c *Config) { c.Player.Lookahead = 0 }},
		{"unknown language", func(c *Config) { c.Player.Language = "zz" }},
		{"unknown voice", func(c *Config) { c.Player.Voice = "nobody" }},
		{"speed too low", func(c *Config) { c.Player.Speed = 0.1 }},
		{"speed too high", func(c *Config) { c.Player.Speed = 4.0 }},
		{"bad synth mode", func(c *Config) { c.Synth.Mode = "magic" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
