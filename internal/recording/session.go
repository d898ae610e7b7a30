// Package recording drives one microphone recording at a time from start to
// a finished audio file.
//
// A [Session] moves through Idle → Starting → Recording ⇄ Paused → Stopped.
// It owns its [audio.Recorder] privately: the recorder is acquired on start
// and released on stop, delete or reset. While recording, a sampling
// goroutine polls the recorder every interval, updates the elapsed time and
// publishes the input level through the session's [Meter].
package recording

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/voicememo/internal/observe"
	"github.com/MrWong99/voicememo/pkg/audio"
)

var (
	// ErrPermissionDenied is returned by [Session.Start] when microphone
	// access is refused.
	ErrPermissionDenied = errors.New("recording: microphone permission denied")

	// ErrNoActiveRecording is returned by operations that need a live
	// recorder when there is none.
	ErrNoActiveRecording = errors.New("recording: no active recording")

	errStartAborted = errors.New("recording: start aborted")
)

// DefaultSampleInterval is how often the recorder is polled while
// recording.
const DefaultSampleInterval = 100 * time.Millisecond

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Starting
	Recording
	Paused
	Stopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	State          State
	Elapsed        time.Duration
	Metering       float64
	OutputLocation string
}

// Seconds returns the elapsed time in whole seconds.
func (s Snapshot) Seconds() int {
	return int(s.Elapsed / time.Second)
}

// Option configures a [Session].
type Option func(*Session)

// WithSampleInterval overrides [DefaultSampleInterval].
func WithSampleInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRecorderOptions sets the options passed to [audio.Platform.NewRecorder].
// Metering is always enabled.
func WithRecorderOptions(opts audio.Options) Option {
	return func(s *Session) { s.recOpts = opts }
}

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is the recording session controller. All methods are safe for
// concurrent use.
type Session struct {
	platform audio.Platform
	meter    *Meter
	interval time.Duration
	recOpts  audio.Options
	metrics  *observe.Metrics

	mu       sync.Mutex
	state    State
	elapsed  time.Duration
	level    float64
	output   string
	rec      audio.Recorder
	cancel   context.CancelFunc // ends the capture context of rec
	live     bool               // counted in ActiveRecordings
	sampling *sampler
}

// NewSession creates an idle session capturing through p.
func NewSession(p audio.Platform, opts ...Option) *Session {
	s := &Session{
		platform: p,
		meter:    NewMeter(),
		interval: DefaultSampleInterval,
		level:    audio.MeteringFloor,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Meter returns the level side channel.
func (s *Session) Meter() *Meter { return s.meter }

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Elapsed: s.elapsed, Metering: s.level, OutputLocation: s.output}
}

// ---- lifecycle ----

// Start begins a new recording. It is a no-op while starting or recording.
// A recorder left over from an earlier recording (e.g. a paused one) is
// discarded first and its errors ignored. If permission is refused the
// session returns to Idle and [ErrPermissionDenied] is returned.
//
// ctx bounds the permission request and recorder setup only; capture runs
// until [Session.Stop], [Session.Delete] or [Session.Reset].
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Starting || s.state == Recording {
		s.mu.Unlock()
		return nil
	}
	s.state = Starting
	prev, prevCancel, smp, wasLive := s.detachLocked()
	s.mu.Unlock()

	smp.halt()
	if prev != nil {
		discard(prev)
		prevCancel()
	}
	if wasLive {
		s.metrics.ActiveRecordings.Add(ctx, -1)
	}

	granted, err := s.platform.RequestPermission(ctx)
	if err != nil {
		s.abortStart()
		return fmt.Errorf("recording: request permission: %w", err)
	}
	if !granted {
		s.abortStart()
		slog.Info("microphone permission denied")
		return ErrPermissionDenied
	}

	opts := s.recOpts
	opts.Metering = true
	rec, err := s.platform.NewRecorder(ctx, opts)
	if err != nil {
		s.abortStart()
		return fmt.Errorf("recording: prepare recorder: %w", err)
	}
	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := rec.Start(captureCtx); err != nil {
		discard(rec)
		cancel()
		s.abortStart()
		return fmt.Errorf("recording: start recorder: %w", err)
	}

	s.mu.Lock()
	if s.state != Starting {
		// Deleted or reset while starting.
		s.mu.Unlock()
		discard(rec)
		cancel()
		return errStartAborted
	}
	s.rec = rec
	s.cancel = cancel
	s.live = true
	s.state = Recording
	s.elapsed = 0
	s.level = audio.MeteringFloor
	s.output = ""
	s.startSamplingLocked(rec)
	s.mu.Unlock()

	s.metrics.ActiveRecordings.Add(ctx, 1)
	slog.Info("recording started")
	return nil
}

func (s *Session) abortStart() {
	s.mu.Lock()
	if s.state == Starting {
		s.state = Idle
	}
	s.mu.Unlock()
}

// Pause suspends capture. Pausing a paused session is a no-op.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	if s.rec == nil || (s.state != Recording && s.state != Paused) {
		s.mu.Unlock()
		return ErrNoActiveRecording
	}
	if s.state == Paused {
		s.mu.Unlock()
		return nil
	}
	rec := s.rec
	smp := s.sampling
	s.sampling = nil
	s.mu.Unlock()

	smp.halt()
	if err := rec.Pause(); err != nil {
		s.mu.Lock()
		if s.rec == rec && s.sampling == nil {
			s.startSamplingLocked(rec)
		}
		s.mu.Unlock()
		return fmt.Errorf("recording: pause: %w", err)
	}

	s.mu.Lock()
	if s.rec == rec {
		s.state = Paused
	}
	s.mu.Unlock()
	slog.Debug("recording paused")
	return nil
}

// Resume continues a paused recording into the same recorder. Resuming a
// running session is a no-op.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.rec == nil || (s.state != Recording && s.state != Paused) {
		s.mu.Unlock()
		return ErrNoActiveRecording
	}
	if s.state == Recording {
		s.mu.Unlock()
		return nil
	}
	rec := s.rec
	s.mu.Unlock()

	if err := rec.Resume(); err != nil {
		return fmt.Errorf("recording: resume: %w", err)
	}

	s.mu.Lock()
	if s.rec == rec && s.state == Paused {
		s.state = Recording
		s.startSamplingLocked(rec)
	}
	s.mu.Unlock()
	slog.Debug("recording resumed")
	return nil
}

// Stop finalises the recording and returns the location of the audio file.
// The session ends Stopped with that location recorded.
func (s *Session) Stop(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.rec == nil || (s.state != Recording && s.state != Paused) {
		s.mu.Unlock()
		return "", ErrNoActiveRecording
	}
	rec, cancel, smp, wasLive := s.detachLocked()
	s.mu.Unlock()

	smp.halt()
	path, err := rec.Stop()
	cancel()
	elapsed := rec.Status().Elapsed
	if wasLive {
		s.metrics.ActiveRecordings.Add(ctx, -1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Idle
		s.elapsed = 0
		s.output = ""
		return "", fmt.Errorf("recording: stop: %w", err)
	}
	s.elapsed = max(s.elapsed, elapsed)
	s.state = Stopped
	s.output = path
	s.level = audio.MeteringFloor
	s.metrics.RecordingDuration.Record(ctx, s.elapsed.Seconds())
	slog.Info("recording stopped", "path", path, "elapsed", s.elapsed)
	return path, nil
}

// Delete discards the current recording. A live recorder is finalised and
// its file removed, ignoring errors. The session returns to Idle.
func (s *Session) Delete(ctx context.Context) {
	s.mu.Lock()
	rec, cancel, smp, wasLive := s.detachLocked()
	s.clearLocked()
	s.mu.Unlock()

	smp.halt()
	if rec != nil {
		discard(rec)
		cancel()
	}
	if wasLive {
		s.metrics.ActiveRecordings.Add(ctx, -1)
	}
	slog.Debug("recording discarded")
}

// Reset returns the session to Idle without finalising a live recorder. Its
// capture is cancelled.
func (s *Session) Reset() {
	s.mu.Lock()
	_, cancel, smp, wasLive := s.detachLocked()
	s.clearLocked()
	s.mu.Unlock()

	smp.halt()
	cancel()
	if wasLive {
		s.metrics.ActiveRecordings.Add(context.Background(), -1)
	}
}

// detachLocked takes the recorder, its capture cancel func and the sampler
// out of the session. The returned cancel func is never nil.
func (s *Session) detachLocked() (audio.Recorder, context.CancelFunc, *sampler, bool) {
	rec, cancel, smp, live := s.rec, s.cancel, s.sampling, s.live
	s.rec, s.cancel, s.sampling, s.live = nil, nil, nil, false
	if cancel == nil {
		cancel = func() {}
	}
	return rec, cancel, smp, live
}

func (s *Session) clearLocked() {
	s.state = Idle
	s.elapsed = 0
	s.level = audio.MeteringFloor
	s.output = ""
}

// discard finalises rec and removes its file.
func discard(rec audio.Recorder) {
	path, err := rec.Stop()
	if err != nil {
		slog.Debug("discarding recorder", "err", err)
	}
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("removing discarded recording", "path", path, "err", err)
	}
}

// ---- sampling ----

type sampler struct {
	stop chan struct{}
	done chan struct{}
}

// halt stops the sampling goroutine and waits for it. It must be called
// without s.mu held. A nil sampler is a no-op.
func (smp *sampler) halt() {
	if smp == nil {
		return
	}
	close(smp.stop)
	<-smp.done
}

func (s *Session) startSamplingLocked(rec audio.Recorder) {
	smp := &sampler{stop: make(chan struct{}), done: make(chan struct{})}
	s.sampling = smp
	go s.sample(rec, smp)
}

func (s *Session) sample(rec audio.Recorder, smp *sampler) {
	defer close(smp.done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-smp.stop:
			return
		case <-t.C:
		}

		st := rec.Status()
		if !st.Recording {
			continue
		}
		level := audio.MeteringFloor
		if st.HasMetering {
			level = st.Metering
		}

		s.mu.Lock()
		if s.sampling != smp {
			s.mu.Unlock()
			return
		}
		s.elapsed = st.Elapsed
		s.level = level
		s.mu.Unlock()

		s.meter.Publish(level)
	}
}
