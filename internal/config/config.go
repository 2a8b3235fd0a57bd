package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Download DownloadConfig `yaml:"download"`
	Upload   UploadConfig   `yaml:"upload"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Worker   WorkerConfig   `yaml:"worker"`
	Events   EventsConfig   `yaml:"events"`
}

// TelegramConfig holds messaging gateway configuration.
type TelegramConfig struct {
	BotToken    string        `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	BaseURL     string        `yaml:"base_url" envconfig:"TELEGRAM_BASE_URL"`
	PollTimeout time.Duration `yaml:"poll_timeout" envconfig:"TELEGRAM_POLL_TIMEOUT"`
	SendRate    float64       `yaml:"send_rate" envconfig:"TELEGRAM_SEND_RATE"`
	SendTimeout time.Duration `yaml:"send_timeout" envconfig:"TELEGRAM_SEND_TIMEOUT"`
}

// ServerConfig holds the operations HTTP server configuration.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"SERVER_ENABLED"`
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

// StorageConfig holds local filesystem configuration.
type StorageConfig struct {
	// TempPath is where audio artifacts live for the duration of one iteration.
	// Empty means os.TempDir().
	TempPath string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH"`
}

// SearchConfig holds catalog search defaults.
type SearchConfig struct {
	MinDuration time.Duration `yaml:"min_duration" envconfig:"SEARCH_MIN_DURATION"`
	MaxResults  int           `yaml:"max_results" envconfig:"SEARCH_MAX_RESULTS"`
	Origin      string        `yaml:"origin" envconfig:"SEARCH_ORIGIN"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"SEARCH_TIMEOUT"`
}

// DownloadConfig holds audio extraction configuration.
type DownloadConfig struct {
	YTDLPPath    string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT"`
	AudioFormat  string        `yaml:"audio_format" envconfig:"DOWNLOAD_AUDIO_FORMAT"`
	AudioBitrate int           `yaml:"audio_bitrate_kbps" envconfig:"DOWNLOAD_AUDIO_BITRATE"`
}

// UploadConfig holds upload endpoint configuration.
type UploadConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"UPLOAD_TIMEOUT"`
	// AcceptAny2xx treats every 2xx status as success. When false only 200 counts.
	AcceptAny2xx bool `yaml:"accept_any_2xx" envconfig:"UPLOAD_ACCEPT_ANY_2XX"`
}

// PipelineConfig holds repeat loop limits.
type PipelineConfig struct {
	MaxRepeatCount int   `yaml:"max_repeat_count" envconfig:"PIPELINE_MAX_REPEAT_COUNT"`
	Seed           int64 `yaml:"seed" envconfig:"PIPELINE_SEED"` // 0 = time based
}

// WorkerConfig holds per-session dispatcher configuration.
type WorkerConfig struct {
	QueueSize       int           `yaml:"queue_size" envconfig:"WORKER_QUEUE_SIZE"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"WORKER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"WORKER_SHUTDOWN_TIMEOUT"`
}

// EventsConfig holds activity log configuration.
type EventsConfig struct {
	BufferSize    int    `yaml:"buffer_size" envconfig:"EVENTS_BUFFER_SIZE"`
	SQLitePath    string `yaml:"sqlite_path" envconfig:"EVENTS_SQLITE_PATH"`
	RetentionDays int    `yaml:"retention_days" envconfig:"EVENTS_RETENTION_DAYS"`
}

// Default returns the configuration used when neither the file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			BaseURL:     "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
			SendRate:    20,
			SendTimeout: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         9848,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			MinDuration: 7 * time.Minute,
			MaxResults:  10,
			Origin:      "https://www.youtube.com",
			Timeout:     60 * time.Second,
		},
		Download: DownloadConfig{
			YTDLPPath:    "yt-dlp",
			Timeout:      15 * time.Minute,
			AudioFormat:  "mp3",
			AudioBitrate: 192,
		},
		Upload: UploadConfig{
			Timeout:      5 * time.Minute,
			AcceptAny2xx: true,
		},
		Pipeline: PipelineConfig{
			MaxRepeatCount: 25,
		},
		Worker: WorkerConfig{
			QueueSize:       16,
			IdleTimeout:     10 * time.Minute,
			ShutdownTimeout: 25 * time.Second,
		},
		Events: EventsConfig{
			BufferSize:    1000,
			RetentionDays: 30,
		},
	}
}

// Load reads configuration from file and environment variables.
// File values replace defaults and environment variables override both. Only
// variables that are set are applied.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search max_results must be positive")
	}
	if c.Search.MinDuration < 0 {
		return fmt.Errorf("search min_duration cannot be negative")
	}
	if c.Download.AudioBitrate <= 0 {
		return fmt.Errorf("download audio_bitrate_kbps must be positive")
	}
	if c.Pipeline.MaxRepeatCount <= 0 {
		return fmt.Errorf("pipeline max_repeat_count must be positive")
	}
	if c.Server.Enabled && c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required when the ops server is enabled")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TempDir returns the artifact directory, falling back to the OS temp dir.
func (c *StorageConfig) TempDir() string {
	if c.TempPath == "" {
		return os.TempDir()
	}
	return c.TempPath
}

// MinDurationSeconds returns the filter threshold in whole seconds.
func (c *SearchConfig) MinDurationSeconds() int {
	return int(c.MinDuration / time.Second)
}
