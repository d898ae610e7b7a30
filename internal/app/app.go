// Package app wires the voicememo subsystems into a running application.
//
// New builds the store, the transcription chain, the note lifecycle
// controller and the recording session from the config. Serve exposes the
// health and metrics endpoints until its context ends, and Shutdown tears
// everything down in order.
//
// Tests inject doubles through the functional options (WithStore,
// WithPlatform, ...). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicememo/internal/alert"
	"github.com/MrWong99/voicememo/internal/classify"
	"github.com/MrWong99/voicememo/internal/config"
	"github.com/MrWong99/voicememo/internal/gateway"
	"github.com/MrWong99/voicememo/internal/health"
	"github.com/MrWong99/voicememo/internal/notes"
	"github.com/MrWong99/voicememo/internal/observe"
	"github.com/MrWong99/voicememo/internal/recording"
	"github.com/MrWong99/voicememo/internal/resilience"
	"github.com/MrWong99/voicememo/internal/store"
	"github.com/MrWong99/voicememo/internal/vocab"
	"github.com/MrWong99/voicememo/pkg/audio"
	"github.com/MrWong99/voicememo/pkg/audio/capture"
	"github.com/MrWong99/voicememo/pkg/provider/llm"
	"github.com/MrWong99/voicememo/pkg/provider/stt"
)

// NamedSTT is a transcription provider with the name it was configured as.
type NamedSTT struct {
	Name     string
	Provider stt.Provider
}

// Providers holds the adapters built by main.go through the config
// registry. LLM is optional.
type Providers struct {
	STT          NamedSTT
	STTFallbacks []NamedSTT

	LLM     llm.Provider
	LLMName string
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	store    store.Store
	vault    *store.AudioVault
	chain    *resilience.STTFallback
	gateway  *gateway.Gateway
	alerts   *alert.Switch
	baseLog  alert.Alerter
	notes    *notes.Controller
	platform audio.Platform
	session  *recording.Session
	health   *health.Handler
	level    *slog.LevelVar

	// closers run in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects the durable store instead of opening the configured
// backend.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithPlatform injects the microphone platform instead of ffmpeg capture.
func WithPlatform(p audio.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogAlerter replaces the log alerter that every alert reaches even
// when no notification URLs are configured.
func WithLogAlerter(al alert.Alerter) Option {
	return func(a *App) { a.baseLog = al }
}

// WithLevelVar lets config reloads change the log level of the handler
// that owns v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New wires every subsystem and loads the persisted notes. Notes that were
// still being transcribed when the process last stopped are failed as
// interrupted.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.baseLog == nil {
		a.baseLog = alert.Log{}
	}

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Transcription chain + gateway ─────────────────────────────────
	if err := a.initGateway(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init gateway: %w", err)
	}

	// ── 3. Alerts ────────────────────────────────────────────────────────
	al, err := buildAlerter(a.baseLog, cfg.Alerts)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init alerts: %w", err)
	}
	a.alerts = alert.NewSwitch(al)

	// ── 4. Notes ─────────────────────────────────────────────────────────
	tc := cfg.Transcription
	a.notes = notes.NewController(a.store, a.gateway,
		notes.WithClassifier(classify.New()),
		notes.WithAudioVault(a.vault),
		notes.WithAlerter(a.alerts),
		notes.WithRetryPolicy(tc.MaxRetries, tc.RetryDelays),
		notes.WithTitleExcerpt(tc.LongRecordingSeconds, tc.TitleExcerptChars),
		notes.WithStoreKey(cfg.Storage.Key),
		notes.WithMetrics(a.metrics),
	)
	if err := a.notes.Load(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: load notes: %w", err)
	}

	// ── 5. Recording ─────────────────────────────────────────────────────
	a.initRecording()

	// ── 6. Health ────────────────────────────────────────────────────────
	checkers := []health.Checker{health.CircuitChecker("transcription", a.gateway.Healthy)}
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.StoreChecker("store", p))
	}
	a.health = health.New(checkers...)

	slog.Info("app ready",
		"notes", len(a.notes.Notes()),
		"failed", len(a.notes.FailedNotes()),
		"stt", a.chain.Names(),
		"storage", cfg.Storage.Backend,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		switch a.cfg.Storage.Backend {
		case config.StoragePostgres:
			pg, err := store.OpenPostgres(ctx, a.cfg.Storage.PostgresDSN)
			if err != nil {
				return err
			}
			a.store = pg
			a.closers = append(a.closers, func() error {
				pg.Close()
				return nil
			})
		default:
			fs, err := store.NewFileStore(a.cfg.Storage.DataDir)
			if err != nil {
				return err
			}
			a.store = fs
		}
	}

	vault, err := store.NewAudioVault(a.cfg.Storage.AudioDir())
	if err != nil {
		return err
	}
	a.vault = vault
	return nil
}

func (a *App) initGateway() error {
	p := a.providers
	if p == nil || p.STT.Provider == nil {
		return errors.New("a transcription provider is required")
	}

	fc := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
				a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}
	a.chain = resilience.NewSTTFallback(p.STT.Provider, p.STT.Name, fc)
	for _, fb := range p.STTFallbacks {
		a.chain.AddFallback(fb.Name, fb.Provider)
	}

	opts := []gateway.Option{
		gateway.WithPlaceholderTitle(a.cfg.Transcription.PlaceholderTitle),
		gateway.WithAttemptTimeout(a.cfg.Transcription.AttemptTimeout),
		gateway.WithMetrics(a.metrics),
	}
	if terms := a.cfg.Transcription.Vocabulary; len(terms) > 0 {
		opts = append(opts, gateway.WithVocabulary(vocab.New(terms)))
	}
	if p.LLM != nil {
		name := p.LLMName
		if name == "" {
			name = "llm"
		}
		opts = append(opts, gateway.WithTitleProvider(name, resilience.NewLLMFallback(p.LLM, name, fc)))
	}
	a.gateway = gateway.New(p.STT.Name, a.chain, opts...)

	a.closers = append(a.closers, closersOf(p)...)
	return nil
}

// closersOf returns Close for every provider that holds resources, such
// as a loaded whisper.cpp model.
func closersOf(p *Providers) []func() error {
	var out []func() error
	add := func(v any) {
		if c, ok := v.(interface{ Close() error }); ok {
			out = append(out, c.Close)
		}
	}
	add(p.STT.Provider)
	for _, fb := range p.STTFallbacks {
		add(fb.Provider)
	}
	if p.LLM != nil {
		add(p.LLM)
	}
	return out
}

func (a *App) initRecording() {
	rc := a.cfg.Recording
	if a.platform == nil {
		a.platform = capture.New(capture.Config{
			Command:     rc.FFmpegCommand,
			InputFormat: rc.InputFormat,
			InputDevice: rc.InputDevice,
		})
	}
	a.session = recording.NewSession(a.platform,
		recording.WithSampleInterval(rc.SampleInterval),
		recording.WithRecorderOptions(audio.Options{
			Format: audio.Format{SampleRate: rc.SampleRate, Channels: rc.Channels},
			Dir:    rc.TempDir,
		}),
		recording.WithMetrics(a.metrics),
	)
}

// buildAlerter returns base alone or base plus a shoutrrr sender for cfg.
func buildAlerter(base alert.Alerter, cfg config.AlertsConfig) (alert.Alerter, error) {
	if len(cfg.URLs) == 0 {
		return base, nil
	}
	s, err := alert.NewShoutrrr(cfg.URLs, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return alert.Multi{base, s}, nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Notes returns the note lifecycle controller.
func (a *App) Notes() *notes.Controller { return a.notes }

// Recorder returns the recording session.
func (a *App) Recorder() *recording.Session { return a.session }

// Health returns the readiness checks.
func (a *App) Health() *health.Handler { return a.health }

// BreakerStates reports the circuit breaker state of every transcription
// provider.
func (a *App) BreakerStates() map[string]resilience.State { return a.chain.States() }

// ─── Capture ─────────────────────────────────────────────────────────────────

// SubmitRecording stops the live recording and submits it as a new note.
// Transcription continues in the background.
func (a *App) SubmitRecording(ctx context.Context) (notes.Note, error) {
	path, err := a.session.Stop(ctx)
	if err != nil {
		return notes.Note{}, err
	}
	snap := a.session.Snapshot()
	n := a.notes.Submit(ctx, notes.Draft{
		DurationSeconds: snap.Seconds(),
		AudioLocation:   path,
	})
	a.session.Reset()
	return n, nil
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyConfig applies the live-reloadable part of a config change: the log
// level and the alert targets. It is the callback of a [config.Watcher].
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AlertsChanged {
		al, err := buildAlerter(a.baseLog, new.Alerts)
		if err != nil {
			slog.Warn("keeping previous alert targets", "err", err)
		} else {
			a.alerts.Set(al)
			slog.Info("alert targets reloaded", "urls", len(new.Alerts.URLs))
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// SlogLevel maps a config log level to a slog level. Unknown values map to
// info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Serve ───────────────────────────────────────────────────────────────────

// Handler returns the admin HTTP handler: /healthz, /readyz and /metrics
// behind the tracing middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler(nil))
	return observe.Middleware(a.metrics)(mux)
}

// Serve listens on ln (or server.listen_addr when ln is nil) and serves
// [App.Handler] until ctx is done. Extra background tasks, such as a config
// watcher, run in the same group and stop with it.
func (a *App) Serve(ctx context.Context, ln net.Listener, tasks ...func(context.Context) error) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("admin server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown discards any unfinished recording, stops background
// transcriptions and releases resources. Notes cut off mid-transcription
// are failed as interrupted on the next start. If ctx expires first the
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.session != nil && a.session.Snapshot().State != recording.Stopped {
			a.session.Delete(ctx)
		}
		if a.notes != nil {
			if err := a.notes.Shutdown(ctx); err != nil {
				slog.Warn("notes shutdown", "err", err)
				shutdownErr = err
				return
			}
		}
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases what New acquired before failing.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
