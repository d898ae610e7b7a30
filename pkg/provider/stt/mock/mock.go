// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to feed controlled transcription results (or a scripted
// sequence of errors) and to inspect which audio files were submitted.
//
// Example:
//
//	p := &mock.Provider{
//	    Errs:   []error{errors.New("timeout")},
//	    Result: types.Transcription{Text: "hello", Language: "en"},
//	}
//	res, err := p.Transcribe(ctx, "/tmp/rec.wav") // fails once, then succeeds
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicememo/pkg/provider/stt"
	"github.com/MrWong99/voicememo/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// AudioPath is the file location passed to Transcribe.
	AudioPath string
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe once Errs is exhausted.
	Result types.Transcription

	// Errs is consumed front to back: call N returns Errs[N] while N < len(Errs).
	Errs []error

	// Err, if non-nil, is returned by every call after Errs is exhausted.
	Err error

	// Hook, if non-nil, runs at the start of every call (outside the lock).
	// Useful to block a call or to mutate state mid-flight in tests.
	Hook func(ctx context.Context, audioPath string)

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (types.Transcription, error) {
	p.mu.Lock()
	hook := p.Hook
	p.mu.Unlock()
	if hook != nil {
		hook(ctx, audioPath)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.TranscribeCalls)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, AudioPath: audioPath})
	if n < len(p.Errs) && p.Errs[n] != nil {
		return types.Transcription{}, p.Errs[n]
	}
	if n >= len(p.Errs) && p.Err != nil {
		return types.Transcription{}, p.Err
	}
	return p.Result, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
