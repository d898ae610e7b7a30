package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicememo/internal/store"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "whisper", "whisper-native", "deepgram"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path, applies defaults and
// returns the validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It expects
// defaults to have been applied and returns a joined error listing every
// failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("stt", fb.Name)
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	if cfg.Providers.LLM.Name != "" && cfg.Providers.LLM.Model == "" {
		slog.Warn("providers.llm.model is empty; the provider default model will be used", "name", cfg.Providers.LLM.Name)
	}

	// Storage
	if !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: file, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when backend is postgres"))
	}
	if err := store.ValidateKey(cfg.Storage.Key); err != nil {
		errs = append(errs, fmt.Errorf("storage.key: %w", err))
	}

	// Transcription
	t := cfg.Transcription
	if t.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("transcription.max_retries %d must not be negative", t.MaxRetries))
	}
	for i, d := range t.RetryDelays {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("transcription.retry_delays[%d] %s must be positive", i, d))
		}
	}
	if t.LongRecordingSeconds < 0 {
		errs = append(errs, fmt.Errorf("transcription.long_recording_seconds %d must not be negative", t.LongRecordingSeconds))
	}
	if t.TitleExcerptChars < 0 {
		errs = append(errs, fmt.Errorf("transcription.title_excerpt_chars %d must not be negative", t.TitleExcerptChars))
	}
	for i, term := range t.Vocabulary {
		if strings.TrimSpace(term) == "" {
			errs = append(errs, fmt.Errorf("transcription.vocabulary[%d] is empty", i))
		}
	}

	// Recording
	r := cfg.Recording
	if r.SampleRate < 1 || r.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("recording.sample_rate %d is out of range [1, 192000]", r.SampleRate))
	}
	if r.Channels < 1 || r.Channels > 2 {
		errs = append(errs, fmt.Errorf("recording.channels %d is invalid; valid values: 1, 2", r.Channels))
	}
	if r.SampleInterval <= 0 {
		errs = append(errs, fmt.Errorf("recording.sample_interval %s must be positive", r.SampleInterval))
	}

	// Alerts
	for i, u := range cfg.Alerts.URLs {
		if u == "" {
			errs = append(errs, fmt.Errorf("alerts.urls[%d] is empty", i))
		}
	}
	if cfg.Alerts.Timeout < 0 {
		errs = append(errs, fmt.Errorf("alerts.timeout %s must not be negative", cfg.Alerts.Timeout))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
