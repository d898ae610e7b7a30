// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., the OpenAI
// transcription API, Deepgram's prerecorded endpoint, a local whisper.cpp
// server or an in-process whisper.cpp model) and exposes a uniform interface:
// hand over the location of a finished audio recording, receive the full text
// and the detected language.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/voicememo/pkg/types"
)

// ErrQuotaExceeded is wrapped by providers when the backend rejects a request
// because the account ran out of credit or exceeded its billing quota.
// Callers must treat such errors as non-retryable.
var ErrQuotaExceeded = errors.New("stt: quota exceeded")

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe reads the audio file at audioPath and returns its
	// transcription. The file must be in a container the backend understands
	// (WAV is accepted by every built-in provider).
	//
	// Returns an error if the file cannot be read, the request fails, or ctx
	// is cancelled. Errors caused by exhausted quota wrap [ErrQuotaExceeded].
	Transcribe(ctx context.Context, audioPath string) (types.Transcription, error)
}
