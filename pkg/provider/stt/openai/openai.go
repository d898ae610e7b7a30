// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (whisper-1 and the gpt-4o transcribe models).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/voicememo/pkg/provider/stt"
	"github.com/MrWong99/voicememo/pkg/types"
)

const (
	defaultModel    = "whisper-1"
	fallbackLang    = "en"
	codeNoQuota     = "insufficient_quota"
	codeBillingHard = "billing_hard_limit_reached"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI transcription endpoint.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage pins the ISO-639-1 input language. When unset the API
// detects it.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are owned by the note lifecycle controller.
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Transcribe uploads the file at audioPath and requests a verbose_json
// response so the detected language is returned alongside the text.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (types.Transcription, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("openai: open audio: %w", err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:           f,
		Model:          oai.AudioModel(p.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	if p.language != "" {
		params.Language = param.NewOpt(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return types.Transcription{}, classifyError(err)
	}

	return types.Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: p.detectedLanguage(resp.RawJSON()),
	}, nil
}

// detectedLanguage reads the "language" field of a verbose_json body.
func (p *Provider) detectedLanguage(raw string) string {
	var v struct {
		Language string `json:"language"`
	}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &v)
	}
	switch {
	case v.Language != "":
		return v.Language
	case p.language != "":
		return p.language
	default:
		return fallbackLang
	}
}

// classifyError wraps billing related API failures in stt.ErrQuotaExceeded.
func classifyError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == codeNoQuota || apiErr.Code == codeBillingHard {
			return fmt.Errorf("openai: transcription: %w: %w", stt.ErrQuotaExceeded, err)
		}
	}
	return fmt.Errorf("openai: transcription: %w", err)
}
