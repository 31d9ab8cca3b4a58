package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// WhisperOptions is the anti-hallucination option bundle passed to the
// local engine. Cloud engines ignore it. The knobs mirror the
// whisper.cpp CLI flags of the same names.
type WhisperOptions struct {
	NoSpeechThreshold       float64 `mapstructure:"no_speech_threshold"`
	LogProbThreshold        float64 `mapstructure:"logprob_threshold"`
	EntropyThreshold        float64 `mapstructure:"entropy_threshold"`
	ConditionOnPreviousText bool    `mapstructure:"condition_on_previous_text"`
	InitialPrompt           string  `mapstructure:"initial_prompt"`
}

type Config struct {
	// BasePath is the root under which uploads/ and transcribed/ live.
	BasePath string `mapstructure:"base_path"`

	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Transcription struct {
		DefaultEngine string `mapstructure:"default_engine"`
		DefaultModel  string `mapstructure:"default_model"`
	} `mapstructure:"transcription"`

	Whisper struct {
		BinaryPath     string         `mapstructure:"binary_path"`
		ModelDir       string         `mapstructure:"model_dir"`
		WhisperOptions `mapstructure:",squash"`
	} `mapstructure:"whisper"`

	Diarization struct {
		Method          string `mapstructure:"method"` // "none" | "fast" | "accurate"
		HFToken         string `mapstructure:"hf_token"`
		MinSpeakers     int    `mapstructure:"min_speakers"`
		MaxSpeakers     int    `mapstructure:"max_speakers"`
		PyannoteCommand string `mapstructure:"pyannote_command"` // runner for the fast path
		WhisperXCommand string `mapstructure:"whisperx_command"` // runner for the accurate path
	} `mapstructure:"diarization"`

	Engines struct {
		DeepgramAPIKey   string `mapstructure:"deepgram_api_key"`
		AssemblyAIAPIKey string `mapstructure:"assemblyai_api_key"`
	} `mapstructure:"engines"`

	LLM struct {
		APIKey      string  `mapstructure:"api_key"`
		BaseURL     string  `mapstructure:"base_url"` // empty = api.openai.com; set for OpenRouter
		Model       string  `mapstructure:"model"`
		Temperature float64 `mapstructure:"temperature"`
	} `mapstructure:"llm"`

	Queue struct {
		PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
		IdleUnloadSeconds   int `mapstructure:"idle_unload_seconds"`
	} `mapstructure:"queue"`

	Log struct {
		Level      string `mapstructure:"level"`
		File       string `mapstructure:"file"` // empty = stderr only
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`
}

func (c *Config) UploadsPath() string     { return filepath.Join(c.BasePath, "uploads") }
func (c *Config) TranscribedPath() string { return filepath.Join(c.BasePath, "transcribed") }
func (c *Config) TemplatesPath() string   { return filepath.Join(c.BasePath, "templates") }
func (c *Config) DatabasePath() string    { return filepath.Join(c.BasePath, "transcribeflow.db") }

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalSeconds) * time.Second
}

func (c *Config) IdleUnloadTimeout() time.Duration {
	return time.Duration(c.Queue.IdleUnloadSeconds) * time.Second
}

// EnsureDirectories creates the working directories under BasePath.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.UploadsPath(), c.TranscribedPath(), c.TemplatesPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func setDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetDefault("base_path", filepath.Join(home, "Transcriptions"))
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("transcription.default_engine", "whisper-cpp")
	viper.SetDefault("transcription.default_model", "large-v2")
	viper.SetDefault("whisper.binary_path", "whisper-cli")
	viper.SetDefault("whisper.no_speech_threshold", 0.6)
	viper.SetDefault("whisper.logprob_threshold", -1.0)
	viper.SetDefault("whisper.entropy_threshold", 2.4)
	viper.SetDefault("whisper.condition_on_previous_text", true)
	viper.SetDefault("diarization.method", "fast")
	viper.SetDefault("diarization.min_speakers", 2)
	viper.SetDefault("diarization.max_speakers", 6)
	viper.SetDefault("diarization.pyannote_command", "pyannote-diarize")
	viper.SetDefault("diarization.whisperx_command", "whisperx-align")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("queue.poll_interval_seconds", 2)
	viper.SetDefault("queue.idle_unload_seconds", 30)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 50)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)
}

// LoadConfig reads config.yaml (working directory or ~/.transcribeflow)
// and the TRANSCRIBEFLOW_* environment, falling back to defaults. A
// missing config file is not an error.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".transcribeflow"))
	}

	setDefaults()

	viper.SetEnvPrefix("TRANSCRIBEFLOW")
	viper.AutomaticEnv()
	viper.BindEnv("diarization.hf_token", "HF_TOKEN")
	viper.BindEnv("engines.deepgram_api_key", "DEEPGRAM_API_KEY")
	viper.BindEnv("engines.assemblyai_api_key", "ASSEMBLYAI_API_KEY")
	viper.BindEnv("llm.api_key", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Provider hands out read-only configuration snapshots. Refresh builds
// a fresh Config from the current viper state and swaps the pointer
// atomically, so the worker goroutine never observes a half-written
// update. A published snapshot must not be mutated.
type Provider struct {
	current atomic.Pointer[Config]
}

func NewProvider(c *Config) *Provider {
	p := &Provider{}
	p.current.Store(c)
	return p
}

// Current returns the latest snapshot.
func (p *Provider) Current() *Config {
	return p.current.Load()
}

// Refresh re-reads the viper state into a new snapshot and publishes
// it, so settings updated at runtime take effect without a restart.
// Snapshots taken before the swap keep their old values.
func (p *Provider) Refresh() error {
	c := new(Config)
	if err := viper.Unmarshal(c); err != nil {
		return err
	}
	p.current.Store(c)
	return nil
}

// Save persists the given keys back to the config file so settings
// survive restarts. Keys use viper dotted notation.
func Save(values map[string]any) error {
	for k, v := range values {
		viper.Set(k, v)
	}
	if err := viper.WriteConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("write config: %w", err)
		}
		home, herr := os.UserHomeDir()
		if herr != nil {
			return fmt.Errorf("write config: %w", err)
		}
		dir := filepath.Join(home, ".transcribeflow")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := viper.WriteConfigAs(filepath.Join(dir, "config.yaml")); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	return nil
}
