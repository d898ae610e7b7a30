// Package audio defines the capture abstractions used to record voice memos.
//
// The two primary abstractions are:
//
//   - [Platform] — grants microphone access and hands out recorders.
//   - [Recorder] — one capture from start to a finished audio file, with
//     pause/resume and optional level metering.
//
// Implementations live in adapter packages (e.g. audio/capture for ffmpeg).
// The interfaces are narrow so the recording session controller stays
// independent of the capture backend.
package audio

import (
	"context"
	"time"
)

// MeteringFloor is the level reported when no metering data is available,
// in dBFS.
const MeteringFloor = -160.0

// Options configures a [Recorder] acquired from a [Platform].
type Options struct {
	// Format of the captured audio. Zero fields fall back to the backend's
	// defaults.
	Format Format

	// Metering enables level reporting through [Status.Metering].
	Metering bool

	// Dir is where the finished file is written. Empty means the system
	// temp directory.
	Dir string
}

// Status is a point-in-time view of a [Recorder].
type Status struct {
	// Recording is true while samples are being captured (false when
	// paused or stopped).
	Recording bool

	// Elapsed is the amount of audio captured so far. Paused time is not
	// counted.
	Elapsed time.Duration

	// Metering is the most recent input level in dBFS. Only valid when
	// HasMetering is true.
	Metering float64

	// HasMetering reports whether the recorder produced a level reading.
	HasMetering bool
}

// Recorder captures a single recording.
//
// Implementations must be safe for concurrent use: [Recorder.Status] is
// polled from a sampling goroutine while the other methods are driven by
// the session controller.
type Recorder interface {
	// Start begins capturing. ctx governs the capture process for its whole
	// lifetime.
	Start(ctx context.Context) error

	// Pause suspends capture without finalising the file.
	Pause() error

	// Resume continues a paused capture into the same file.
	Resume() error

	// Stop finalises the recording and returns the location of the audio
	// file. Calling Stop more than once returns the first result.
	Stop() (string, error)

	// Status returns the current recorder state.
	Status() Status
}

// Platform is the entry point for a capture backend.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// RequestPermission asks for microphone access and reports whether it
	// was granted. An error means the question could not be asked at all.
	RequestPermission(ctx context.Context) (bool, error)

	// NewRecorder prepares a recorder configured by opts. The recorder does
	// not capture until [Recorder.Start] is called.
	NewRecorder(ctx context.Context, opts Options) (Recorder, error)
}
