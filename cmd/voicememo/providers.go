package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voicememo/internal/app"
	"github.com/MrWong99/voicememo/internal/config"
	"github.com/MrWong99/voicememo/pkg/provider/llm"
	"github.com/MrWong99/voicememo/pkg/provider/llm/anyllm"
	llmopenai "github.com/MrWong99/voicememo/pkg/provider/llm/openai"
	"github.com/MrWong99/voicememo/pkg/provider/stt"
	"github.com/MrWong99/voicememo/pkg/provider/stt/deepgram"
	sttopenai "github.com/MrWong99/voicememo/pkg/provider/stt/openai"
	"github.com/MrWong99/voicememo/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires the provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		if d, err := optDuration(entry, "timeout"); err != nil {
			return nil, err
		} else if d > 0 {
			opts = append(opts, sttopenai.WithTimeout(d))
		}
		return sttopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.OptString("model_path")
		if modelPath == "" {
			modelPath = entry.Model
		}
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	// openai goes through the official SDK so organisation and timeout can
	// be set; the others share any-llm's APIKey + BaseURL pattern.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, llmopenai.WithOrganization(org))
		}
		if d, err := optDuration(entry, "timeout"); err != nil {
			return nil, err
		} else if d > 0 {
			opts = append(opts, llmopenai.WithTimeout(d))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "ollama",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	for _, kind := range []string{"stt", "llm"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates the providers named in cfg. The primary
// transcription provider and every fallback must be buildable; a title
// provider that is not registered is skipped and notes keep the placeholder
// title.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	entry := cfg.Providers.STT
	p, err := reg.CreateSTT(entry)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
	}
	ps.STT = app.NamedSTT{Name: entry.Name, Provider: p}
	slog.Info("provider created", "kind", "stt", "name", entry.Name)

	for i, fb := range cfg.Providers.STTFallbacks {
		p, err := reg.CreateSTT(fb)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %d %q: %w", i, fb.Name, err)
		}
		ps.STTFallbacks = append(ps.STTFallbacks, app.NamedSTT{Name: fallbackName(fb, i), Provider: p})
		slog.Info("provider created", "kind", "stt", "name", fb.Name, "fallback", i)
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("title provider not available, using placeholder titles", "name", name)
		case err != nil:
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		default:
			ps.LLM = p
			ps.LLMName = name
			slog.Info("provider created", "kind", "llm", "name", name)
		}
	}

	return ps, nil
}

// fallbackName keeps breaker names unique when the same provider kind is
// configured more than once.
func fallbackName(entry config.ProviderEntry, i int) string {
	if entry.Model != "" {
		return fmt.Sprintf("%s/%s#%d", entry.Name, entry.Model, i+1)
	}
	return fmt.Sprintf("%s#%d", entry.Name, i+1)
}

// optDuration parses a duration option such as "30s". Absent means zero.
func optDuration(entry config.ProviderEntry, key string) (time.Duration, error) {
	s := entry.OptString(key)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("provider %q: option %s: %w", entry.Name, key, err)
	}
	return d, nil
}
