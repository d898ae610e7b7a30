// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// pre-recorded audio REST API. It implements the stt.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/voicememo/pkg/provider/stt"
	"github.com/MrWong99/voicememo/pkg/types"
)

const (
	defaultBaseURL = "https://api.deepgram.com"
	defaultModel   = "nova-3"
	defaultTimeout = 120 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage pins the BCP-47 language code for recognition (e.g., "en",
// "de-DE"). When unset, Deepgram detects the language.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithBaseURL overrides the API base URL (used by tests and proxies).
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams the file at audioPath as the request body to
// POST /v1/listen and returns the first alternative of the first channel.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (types.Transcription, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: open audio: %w", err)
	}
	defer f.Close()

	endpoint, err := p.buildURL()
	if err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", contentType(audioPath))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Transcription{}, statusError(resp.StatusCode, data)
	}

	res, err := parseListenResponse(data)
	if err != nil {
		return types.Transcription{}, err
	}
	if res.Language == "" {
		res.Language = p.language
	}
	return res, nil
}

// buildURL constructs the pre-recorded endpoint URL with query parameters.
func (p *Provider) buildURL() (string, error) {
	u, err := url.Parse(p.baseURL + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if p.language != "" {
		q.Set("language", p.language)
	} else {
		q.Set("detect_language", "true")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// contentType picks the MIME type from the file extension.
func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// errorBody is Deepgram's JSON error envelope.
type errorBody struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

// statusError converts a non-200 response into an error. HTTP 402 and
// credit-related error codes wrap stt.ErrQuotaExceeded.
func statusError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.ErrMsg
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if status == http.StatusPaymentRequired || strings.Contains(strings.ToUpper(eb.ErrCode), "INSUFFICIENT") {
		return fmt.Errorf("deepgram: HTTP %d: %s: %w", status, msg, stt.ErrQuotaExceeded)
	}
	return fmt.Errorf("deepgram: HTTP %d: %s", status, msg)
}

// listenResponse is the subset of the pre-recorded response we consume.
type listenResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// parseListenResponse extracts the transcript and detected language.
func parseListenResponse(data []byte) (types.Transcription, error) {
	var resp listenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return types.Transcription{}, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}
	if len(resp.Results.Channels) == 0 {
		return types.Transcription{}, errors.New("deepgram: response has no channels")
	}
	ch := resp.Results.Channels[0]
	if len(ch.Alternatives) == 0 {
		return types.Transcription{Language: ch.DetectedLanguage}, nil
	}
	return types.Transcription{
		Text:     strings.TrimSpace(ch.Alternatives[0].Transcript),
		Language: ch.DetectedLanguage,
	}, nil
}
