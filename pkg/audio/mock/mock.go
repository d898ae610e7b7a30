// Package mock provides in-memory implementations of [audio.Platform] and
// [audio.Recorder] for unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts, and they expose exported fields that
// the test can set to control return values.
//
// Typical usage:
//
//	rec := &mock.Recorder{OutputPath: "/tmp/memo.wav"}
//	platform := &mock.Platform{Granted: true, RecorderResult: rec}
//	rec.SetStatus(audio.Status{Recording: true, Elapsed: time.Second})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicememo/pkg/audio"
)

// ─── Recorder ─────────────────────────────────────────────────────────────────

// Recorder is a mock implementation of [audio.Recorder].
type Recorder struct {
	mu sync.Mutex

	// OutputPath is returned by Stop.
	OutputPath string

	// StartErr, PauseErr, ResumeErr and StopErr are returned by the
	// matching methods.
	StartErr  error
	PauseErr  error
	ResumeErr error
	StopErr   error

	status audio.Status

	// Call counters.
	StartCalls  int
	PauseCalls  int
	ResumeCalls int
	StopCalls   int
}

// SetStatus replaces the value returned by Status.
func (r *Recorder) SetStatus(s audio.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// Start implements [audio.Recorder]. On success Status reports Recording.
func (r *Recorder) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCalls++
	if r.StartErr != nil {
		return r.StartErr
	}
	r.status.Recording = true
	return nil
}

// Pause implements [audio.Recorder].
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PauseCalls++
	if r.PauseErr != nil {
		return r.PauseErr
	}
	r.status.Recording = false
	return nil
}

// Resume implements [audio.Recorder].
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResumeCalls++
	if r.ResumeErr != nil {
		return r.ResumeErr
	}
	r.status.Recording = true
	return nil
}

// Stop implements [audio.Recorder]. Returns OutputPath / StopErr.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StopCalls++
	r.status.Recording = false
	if r.StopErr != nil {
		return "", r.StopErr
	}
	return r.OutputPath, nil
}

// Status implements [audio.Recorder].
func (r *Recorder) Status() audio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Calls returns the start, pause, resume and stop counts.
func (r *Recorder) Calls() (start, pause, resume, stop int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.StartCalls, r.PauseCalls, r.ResumeCalls, r.StopCalls
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// Granted is the permission answer.
	Granted bool

	// PermissionErr is returned by RequestPermission.
	PermissionErr error

	// RecorderResult is returned by NewRecorder. When Recorders is non-empty
	// it takes precedence and is consumed in order.
	RecorderResult audio.Recorder
	Recorders      []audio.Recorder

	// RecorderErr is returned by NewRecorder.
	RecorderErr error

	// PermissionCalls counts RequestPermission invocations.
	PermissionCalls int

	// RecorderCalls records the options passed to NewRecorder.
	RecorderCalls []audio.Options
}

// RequestPermission implements [audio.Platform].
func (p *Platform) RequestPermission(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PermissionCalls++
	return p.Granted, p.PermissionErr
}

// NewRecorder implements [audio.Platform].
func (p *Platform) NewRecorder(_ context.Context, opts audio.Options) (audio.Recorder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecorderCalls = append(p.RecorderCalls, opts)
	if p.RecorderErr != nil {
		return nil, p.RecorderErr
	}
	if len(p.Recorders) > 0 {
		r := p.Recorders[0]
		p.Recorders = p.Recorders[1:]
		return r, nil
	}
	return p.RecorderResult, nil
}

var (
	_ audio.Recorder = (*Recorder)(nil)
	_ audio.Platform = (*Platform)(nil)
)
