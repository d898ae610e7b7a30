package resilience

import (
	"context"

	"github.com/MrWong99/voicememo/pkg/provider/stt"
	"github.com/MrWong99/voicememo/pkg/types"
)

// STTFallback is an [stt.Provider] that fails over between transcription
// backends. A backend reporting [stt.ErrQuotaExceeded] is skipped like any
// other failure; if every backend fails the returned error still matches
// [stt.ErrQuotaExceeded] when the last one did.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] preferring primary.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend after the existing ones.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends audioPath to the first backend that succeeds.
func (f *STTFallback) Transcribe(ctx context.Context, audioPath string) (types.Transcription, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (types.Transcription, error) {
		return p.Transcribe(ctx, audioPath)
	})
}

// Healthy reports whether any backend currently admits calls.
func (f *STTFallback) Healthy() bool { return f.group.Healthy() }

// Names returns the backend names in call order.
func (f *STTFallback) Names() []string { return f.group.Names() }

// States returns each backend's breaker state.
func (f *STTFallback) States() map[string]State { return f.group.States() }
