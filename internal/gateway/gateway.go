// Package gateway is the transcription and title service used by the note
// lifecycle controller. It puts a single face on top of the configured
// speech-to-text chain and the optional title model, adding per-call
// timeouts, spans and metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/voicememo/internal/observe"
	"github.com/MrWong99/voicememo/internal/vocab"
	"github.com/MrWong99/voicememo/pkg/provider/llm"
	"github.com/MrWong99/voicememo/pkg/provider/stt"
	"github.com/MrWong99/voicememo/pkg/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrQuotaExceeded marks a transcription failure that must not be retried.
// It is the same sentinel the STT adapters wrap.
var ErrQuotaExceeded = stt.ErrQuotaExceeded

// DefaultPlaceholderTitle is the title of a note that has not been named yet.
const DefaultPlaceholderTitle = "New Voice Note"

const (
	titleMaxTokens    = 20
	minTitleInputLen  = 5
	defaultTitleLang  = "the same language as the transcript"
	titlePromptFormat = "Generate a very short, concise title (max 5 words) for the following voice note transcript. " +
		"The title MUST be in %s. Do not translate to any other language. Do not use quotes."
)

// Gateway transcribes audio files and names transcripts.
type Gateway struct {
	stt     stt.Provider
	sttName string

	llm     llm.Provider
	llmName string

	vocab *vocab.Corrector

	placeholder    string
	attemptTimeout time.Duration
	metrics        *observe.Metrics
}

// Option configures a [Gateway].
type Option func(*Gateway)

// WithTitleProvider enables title generation through p. Without it every
// note keeps the placeholder title.
func WithTitleProvider(name string, p llm.Provider) Option {
	return func(g *Gateway) {
		g.llm = p
		g.llmName = name
	}
}

// WithPlaceholderTitle overrides [DefaultPlaceholderTitle].
func WithPlaceholderTitle(title string) Option {
	return func(g *Gateway) {
		if title != "" {
			g.placeholder = title
		}
	}
}

// WithAttemptTimeout bounds every single provider call. Zero disables the
// bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.attemptTimeout = d }
}

// WithVocabulary corrects the spelling of known terms in every transcript.
func WithVocabulary(c *vocab.Corrector) Option {
	return func(g *Gateway) { g.vocab = c }
}

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// New returns a Gateway transcribing through p, reported as name.
func New(name string, p stt.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		stt:         p,
		sttName:     name,
		placeholder: DefaultPlaceholderTitle,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Placeholder returns the title given to notes that have not been named.
func (g *Gateway) Placeholder() string { return g.placeholder }

// Transcribe converts the audio file at audioPath into text. Provider
// errors are returned unchanged because their message ends up on the note;
// use [IsQuotaError] to decide whether to retry.
func (g *Gateway) Transcribe(ctx context.Context, audioPath string) (types.Transcription, error) {
	ctx, span := observe.StartSpan(ctx, "gateway.transcribe")
	span.SetAttributes(attribute.String("stt.provider", g.sttName))

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := g.stt.Transcribe(ctx, audioPath)
	g.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", g.sttName)))
	observe.EndSpan(span, err)

	if err != nil {
		g.metrics.RecordProviderRequest(ctx, g.sttName, "stt", "error")
		g.metrics.RecordProviderError(ctx, g.sttName, "stt")
		return types.Transcription{}, err
	}
	g.metrics.RecordProviderRequest(ctx, g.sttName, "stt", "ok")

	if text, fixes := g.vocab.Correct(res.Text); len(fixes) > 0 {
		res.Text = text
		for _, f := range fixes {
			slog.Debug("vocabulary correction", "from", f.Original, "to", f.Corrected, "score", f.Score)
		}
	}
	return res, nil
}

// GenerateTitle asks the title model for a short title for text in
// language. It never fails: without a title model, on any error or for
// input shorter than five characters the placeholder is returned.
func (g *Gateway) GenerateTitle(ctx context.Context, text, language string) string {
	if g.llm == nil || len(strings.TrimSpace(text)) < minTitleInputLen {
		return g.placeholder
	}
	if language == "" {
		language = defaultTitleLang
	}

	ctx, span := observe.StartSpan(ctx, "gateway.title")
	span.SetAttributes(attribute.String("llm.provider", g.llmName))
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(titlePromptFormat, language),
		Messages:     []types.Message{{Role: "user", Content: text}},
		MaxTokens:    titleMaxTokens,
	})
	g.metrics.TitleDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", g.llmName)))
	observe.EndSpan(span, err)

	if err != nil {
		g.metrics.RecordProviderRequest(ctx, g.llmName, "title", "error")
		g.metrics.RecordProviderError(ctx, g.llmName, "title")
		slog.Warn("title generation failed, keeping placeholder", "provider", g.llmName, "err", err)
		return g.placeholder
	}
	g.metrics.RecordProviderRequest(ctx, g.llmName, "title", "ok")

	if resp == nil {
		return g.placeholder
	}
	if title := cleanTitle(resp.Content); title != "" {
		return title
	}
	return g.placeholder
}

// Healthy reports whether the transcription chain currently admits calls.
// Providers that do not track health are always healthy.
func (g *Gateway) Healthy() bool {
	if h, ok := g.stt.(interface{ Healthy() bool }); ok {
		return h.Healthy()
	}
	return true
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.attemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.attemptTimeout)
}

// cleanTitle trims whitespace and surrounding quote characters.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”‘’«»")
	return strings.TrimSpace(s)
}

// IsQuotaError reports whether err signals exhausted quota or billing
// trouble. Such failures are terminal for a note.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "billing")
}
