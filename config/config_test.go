package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"utter/capture"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("UTTER_TEST_KEY", "sk-test")
	path := writeConfig(t, `
audio:
  recording_mode: manual
  max_recording_time: 15
stt:
  provider: openai
  api_key: ${UTTER_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.STT.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want sk-test", cfg.STT.APIKey)
	}
	if cfg.Audio.RecordingMode != "manual" || cfg.Audio.MaxRecordingTime != 15 {
		t.Errorf("audio section not parsed: %+v", cfg.Audio)
	}
	// untouched fields get defaults
	if cfg.Audio.SilenceThreshold != 0.003 || cfg.Audio.MaxSilence != 6.0 || cfg.Audio.SampleRate != 16000 {
		t.Errorf("defaults not applied: %+v", cfg.Audio)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Load(missing); err == nil {
		t.Error("expected error for missing file")
	}
	cfg, err := LoadOrDefault(missing)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.STT.Provider != "groq" || cfg.Audio.RecordingMode != "auto" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "audio: [unterminated")
	if _, err := LoadOrDefault(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaultAPIKeyFromEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-env")
	if got := Default().STT.APIKey; got != "gsk-env" {
		t.Errorf("api key = %q, want gsk-env", got)
	}
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Audio.RecordingMode = "push" }},
		{"max time", func(c *Config) { c.Audio.MaxRecordingTime = -1 }},
		{"threshold", func(c *Config) { c.Audio.SilenceThreshold = -0.1 }},
		{"max silence", func(c *Config) { c.Audio.MaxSilence = -2 }},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 44100 }},
		{"provider", func(c *Config) { c.STT.Provider = "deepgram" }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestAudioCapture(t *testing.T) {
	a := Default().Audio
	a.MaxRecordingTime = 2.5
	a.RecordingMode = "manual"

	cfg := a.Capture()
	if cfg.MaxDuration != 2500*time.Millisecond {
		t.Errorf("MaxDuration = %v", cfg.MaxDuration)
	}
	if cfg.Endpoint.SilenceThreshold != 0.003 || cfg.Endpoint.MaxSilenceSeconds != 6 || cfg.Endpoint.SampleRate != 16000 {
		t.Errorf("endpoint = %+v", cfg.Endpoint)
	}
	if cfg.TickInterval != capture.DefaultTickInterval {
		t.Errorf("tick = %v", cfg.TickInterval)
	}
	if m, err := a.Mode(); err != nil || m != capture.ModeManual {
		t.Errorf("Mode = %v, %v", m, err)
	}
}

func TestShippedSettingsParse(t *testing.T) {
	cfg, err := Load("settings.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("shipped settings invalid: %v", err)
	}
}
