package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the conversation client.
type Config struct {
	Gemini  GeminiConfig  `yaml:"gemini"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type GeminiConfig struct {
	APIKey     string `yaml:"apiKey"`
	APIBaseURL string `yaml:"apiBaseUrl"`
	LiveModel  string `yaml:"liveModel"`
	TextModel  string `yaml:"textModel"`
	ImageModel string `yaml:"imageModel"`
}

type AudioConfig struct {
	CaptureCommand   string `yaml:"captureCommand"`
	PlaybackCommand  string `yaml:"playbackCommand"`
	InputFormat      string `yaml:"inputFormat"`
	InputDevice      string `yaml:"inputDevice"`
	InputSampleRate  int    `yaml:"inputSampleRate"`
	OutputSampleRate int    `yaml:"outputSampleRate"`
	FrameSize        int    `yaml:"frameSize"`
}

type SessionConfig struct {
	TargetLanguage     string        `yaml:"targetLanguage"`
	NativeLanguage     string        `yaml:"nativeLanguage"`
	Voice              string        `yaml:"voice"`
	LearningPurpose    string        `yaml:"learningPurpose"`
	PlaybackRate       float64       `yaml:"playbackRate"`
	TranslationTimeout time.Duration `yaml:"translationTimeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load resolves configuration from an optional YAML file overlaid with
// environment variables. Environment values win over file values.
func Load() (Config, error) {
	cfg := defaults()

	path, err := configFilePath()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if cfg.Audio.InputSampleRate <= 0 {
		cfg.Audio.InputSampleRate = 16000
	}
	if cfg.Audio.OutputSampleRate <= 0 {
		cfg.Audio.OutputSampleRate = 24000
	}
	if cfg.Audio.FrameSize < 256 {
		cfg.Audio.FrameSize = 4096
	}
	if cfg.Session.PlaybackRate <= 0 {
		cfg.Session.PlaybackRate = 1.0
	}
	if cfg.Session.TranslationTimeout <= 0 {
		cfg.Session.TranslationTimeout = 15 * time.Second
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Gemini: GeminiConfig{
			APIBaseURL: "https://generativelanguage.googleapis.com",
		},
		Audio: AudioConfig{
			CaptureCommand:   "ffmpeg",
			PlaybackCommand:  "ffplay",
			InputFormat:      "pulse",
			InputDevice:      "default",
			InputSampleRate:  16000,
			OutputSampleRate: 24000,
			FrameSize:        4096,
		},
		Session: SessionConfig{
			TargetLanguage:     "Spanish",
			NativeLanguage:     "English",
			Voice:              "Puck",
			PlaybackRate:       1.0,
			TranslationTimeout: 15 * time.Second,
		},
	}
}

func configFilePath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("LINGUA_CONFIG_FILE")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine home directory")
	}
	candidate := filepath.Join(home, ".config", "lingua", "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.APIBaseURL, "GEMINI_API_BASE")
	setString(&cfg.Gemini.LiveModel, "LINGUA_LIVE_MODEL")
	setString(&cfg.Gemini.TextModel, "LINGUA_TEXT_MODEL")
	setString(&cfg.Gemini.ImageModel, "LINGUA_IMAGE_MODEL")

	setString(&cfg.Audio.CaptureCommand, "LINGUA_FFMPEG_COMMAND")
	setString(&cfg.Audio.PlaybackCommand, "LINGUA_FFPLAY_COMMAND")
	setString(&cfg.Audio.InputFormat, "LINGUA_AUDIO_INPUT_FORMAT")
	setString(&cfg.Audio.InputDevice, "LINGUA_AUDIO_INPUT_DEVICE")
	setInt(&cfg.Audio.InputSampleRate, "LINGUA_INPUT_SAMPLE_RATE")
	setInt(&cfg.Audio.OutputSampleRate, "LINGUA_OUTPUT_SAMPLE_RATE")
	setInt(&cfg.Audio.FrameSize, "LINGUA_AUDIO_FRAME_SIZE")

	setString(&cfg.Session.TargetLanguage, "LINGUA_TARGET_LANGUAGE")
	setString(&cfg.Session.NativeLanguage, "LINGUA_NATIVE_LANGUAGE")
	setString(&cfg.Session.Voice, "LINGUA_VOICE")
	setString(&cfg.Session.LearningPurpose, "LINGUA_LEARNING_PURPOSE")
	setFloat(&cfg.Session.PlaybackRate, "LINGUA_PLAYBACK_RATE")
	setMillis(&cfg.Session.TranslationTimeout, "LINGUA_TRANSLATION_TIMEOUT_MS")

	setString(&cfg.Metrics.Addr, "LINGUA_METRICS_ADDR")
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*target = parsed
	}
}

func setFloat(target *float64, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		*target = parsed
	}
}

func setMillis(target *time.Duration, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		*target = time.Duration(parsed) * time.Millisecond
	}
}
