package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"utter/audio"
	"utter/capture"
)

const DefaultPath = "config/settings.yaml"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Audio AudioConfig `yaml:"audio"`
	STT   STTConfig   `yaml:"stt"`
	Log   LogConfig   `yaml:"log"`
}

type AudioConfig struct {
	RecordingMode    string  `yaml:"recording_mode"`
	MaxRecordingTime float64 `yaml:"max_recording_time"` // seconds
	SilenceThreshold float64 `yaml:"silence_threshold"`
	MaxSilence       float64 `yaml:"max_silence"` // seconds
	SampleRate       int     `yaml:"sample_rate"`
	Device           string  `yaml:"device"`
	SaveDir          string  `yaml:"save_dir"`
}

type STTConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	APIKey   string `yaml:"api_key"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyDefaults fills unset fields. It is applied by Load and again after
// flags change the provider, so the provider's API key variable is picked up.
func (c *Config) ApplyDefaults() { c.setDefaults() }

func (c *Config) setDefaults() {
	if c.Audio.RecordingMode == "" {
		c.Audio.RecordingMode = "auto"
	}
	if c.Audio.MaxRecordingTime == 0 {
		c.Audio.MaxRecordingTime = 60
	}
	if c.Audio.SilenceThreshold == 0 {
		c.Audio.SilenceThreshold = 0.003
	}
	if c.Audio.MaxSilence == 0 {
		c.Audio.MaxSilence = 6.0
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = audio.SampleRate
	}
	if c.STT.Provider == "" {
		c.STT.Provider = "groq"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.STT.APIKey == "" {
		switch c.STT.Provider {
		case "groq":
			c.STT.APIKey = os.Getenv("GROQ_API_KEY")
		case "openai":
			c.STT.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if _, err := capture.ParseMode(c.Audio.RecordingMode); err != nil {
		return fmt.Errorf("%w: audio.recording_mode: %v", ErrInvalid, err)
	}
	if c.Audio.MaxRecordingTime <= 0 {
		return fmt.Errorf("%w: audio.max_recording_time must be positive", ErrInvalid)
	}
	if c.Audio.SilenceThreshold <= 0 {
		return fmt.Errorf("%w: audio.silence_threshold must be positive", ErrInvalid)
	}
	if c.Audio.MaxSilence <= 0 {
		return fmt.Errorf("%w: audio.max_silence must be positive", ErrInvalid)
	}
	if c.Audio.SampleRate != audio.SampleRate {
		return fmt.Errorf("%w: audio.sample_rate must be %d, got %d", ErrInvalid, audio.SampleRate, c.Audio.SampleRate)
	}
	switch c.STT.Provider {
	case "groq", "openai", "whisper", "none":
	default:
		return fmt.Errorf("%w: unknown stt.provider %q", ErrInvalid, c.STT.Provider)
	}
	return nil
}

func (a AudioConfig) Mode() (capture.Mode, error) {
	return capture.ParseMode(a.RecordingMode)
}

// Capture maps the audio section onto a capture.Config.
func (a AudioConfig) Capture() capture.Config {
	cfg := capture.DefaultConfig()
	cfg.MaxDuration = time.Duration(a.MaxRecordingTime * float64(time.Second))
	cfg.Endpoint = capture.EndpointConfig{
		SilenceThreshold:  a.SilenceThreshold,
		MaxSilenceSeconds: a.MaxSilence,
		SampleRate:        a.SampleRate,
	}
	return cfg
}
