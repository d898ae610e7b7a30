// Package config defines the voicememo configuration file and the provider
// registry used to turn its provider entries into live adapters.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StorageBackend selects where the note collection is persisted.
type StorageBackend string

const (
	// StorageFile keeps one JSON file per key in Storage.DataDir.
	StorageFile StorageBackend = "file"

	// StoragePostgres keeps keys in a PostgreSQL table.
	StoragePostgres StorageBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b StorageBackend) IsValid() bool {
	return b == StorageFile || b == StoragePostgres
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultListenAddr           = "127.0.0.1:9464"
	DefaultStoreKey             = "voicememo-notes"
	DefaultMaxRetries           = 3
	DefaultPlaceholderTitle     = "New Voice Note"
	DefaultLongRecordingSeconds = 120
	DefaultTitleExcerptChars    = 300
	DefaultAttemptTimeout       = 2 * time.Minute
	DefaultFFmpegCommand        = "ffmpeg"
	DefaultInputFormat          = "pulse"
	DefaultInputDevice          = "default"
	DefaultSampleRate           = 16000
	DefaultChannels             = 1
	DefaultSampleInterval       = 100 * time.Millisecond
	DefaultAlertTimeout         = 10 * time.Second
)

// DefaultRetryDelays is the backoff table used when transcription.retry_delays
// is empty.
var DefaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Config is the root of the YAML configuration file.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Recording     RecordingConfig     `yaml:"recording"`
	Alerts        AlertsConfig        `yaml:"alerts"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// ListenAddr is where `voicememo serve` exposes /healthz, /readyz and
	// /metrics.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProviderEntry names a provider and carries its credentials and tuning.
type ProviderEntry struct {
	Name    string         `yaml:"name"`
	APIKey  string         `yaml:"api_key"`
	BaseURL string         `yaml:"base_url"`
	Model   string         `yaml:"model"`
	Options map[string]any `yaml:"options"`
}

// ProvidersConfig selects the speech-to-text chain and the title model.
type ProvidersConfig struct {
	// STT is the primary transcription provider.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary fails or its circuit
	// breaker is open.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	// LLM generates note titles. Optional; without it notes keep the
	// placeholder title.
	LLM ProviderEntry `yaml:"llm"`
}

// StorageConfig configures the durable store and the audio directory.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`

	// DataDir holds the file store and the audio vault. Defaults to
	// $XDG_DATA_HOME/voicememo (or the platform equivalent).
	DataDir string `yaml:"data_dir"`

	PostgresDSN string `yaml:"postgres_dsn"`

	// Key is the store key of the note collection.
	Key string `yaml:"key"`
}

// AudioDir returns the directory audio files are moved into.
func (s StorageConfig) AudioDir() string { return filepath.Join(s.DataDir, "audio") }

// TranscriptionConfig tunes the transcription lifecycle.
type TranscriptionConfig struct {
	MaxRetries           int             `yaml:"max_retries"`
	RetryDelays          []time.Duration `yaml:"retry_delays"`
	PlaceholderTitle     string          `yaml:"placeholder_title"`
	LongRecordingSeconds int             `yaml:"long_recording_seconds"`
	TitleExcerptChars    int             `yaml:"title_excerpt_chars"`

	// AttemptTimeout bounds a single provider call. Zero keeps the default;
	// a negative value disables the bound.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// Vocabulary lists names and jargon whose spelling is corrected in
	// transcripts.
	Vocabulary []string `yaml:"vocabulary"`
}

// RecordingConfig configures microphone capture through ffmpeg.
type RecordingConfig struct {
	FFmpegCommand  string        `yaml:"ffmpeg_command"`
	InputFormat    string        `yaml:"input_format"`
	InputDevice    string        `yaml:"input_device"`
	SampleRate     int           `yaml:"sample_rate"`
	Channels       int           `yaml:"channels"`
	SampleInterval time.Duration `yaml:"sample_interval"`

	// TempDir receives recordings in progress. Empty uses the OS temp dir.
	TempDir string `yaml:"temp_dir"`
}

// AlertsConfig lists notification targets for quota alerts.
type AlertsConfig struct {
	// URLs are shoutrrr service URLs (e.g. "ntfy://ntfy.sh/memos").
	URLs    []string      `yaml:"urls"`
	Timeout time.Duration `yaml:"timeout"`
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = defaultDataDir()
	}
	if c.Storage.Key == "" {
		c.Storage.Key = DefaultStoreKey
	}

	t := &c.Transcription
	if t.MaxRetries == 0 {
		t.MaxRetries = DefaultMaxRetries
	}
	if len(t.RetryDelays) == 0 {
		t.RetryDelays = append([]time.Duration(nil), DefaultRetryDelays...)
	}
	if t.PlaceholderTitle == "" {
		t.PlaceholderTitle = DefaultPlaceholderTitle
	}
	if t.LongRecordingSeconds == 0 {
		t.LongRecordingSeconds = DefaultLongRecordingSeconds
	}
	if t.TitleExcerptChars == 0 {
		t.TitleExcerptChars = DefaultTitleExcerptChars
	}
	if t.AttemptTimeout == 0 {
		t.AttemptTimeout = DefaultAttemptTimeout
	}

	r := &c.Recording
	if r.FFmpegCommand == "" {
		r.FFmpegCommand = DefaultFFmpegCommand
	}
	if r.InputFormat == "" {
		r.InputFormat = DefaultInputFormat
	}
	if r.InputDevice == "" {
		r.InputDevice = DefaultInputDevice
	}
	if r.SampleRate == 0 {
		r.SampleRate = DefaultSampleRate
	}
	if r.Channels == 0 {
		r.Channels = DefaultChannels
	}
	if r.SampleInterval == 0 {
		r.SampleInterval = DefaultSampleInterval
	}

	if c.Alerts.Timeout == 0 {
		c.Alerts.Timeout = DefaultAlertTimeout
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "voicememo")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "voicememo")
	}
	return ".voicememo"
}
