// Package notes owns the voice note collection and its lifecycle.
//
// A [Controller] inserts freshly recorded notes, moves their audio into
// durable storage, drives transcription with bounded retries, classifies
// and names the result, and writes the whole collection through a
// [store.Store] after every change. On start-up [Controller.Load] revives
// the persisted collection and turns work that cannot have survived the
// restart into failures the user can retry.
package notes

import (
	"fmt"
	"time"

	"github.com/MrWong99/voicememo/internal/classify"
	"github.com/MrWong99/voicememo/pkg/types"
)

// Status is the lifecycle state of a [Note].
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTranscribing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// InFlight reports whether s only makes sense while a transcription task is
// running.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusTranscribing
}

// Note is one captured voice memo and everything derived from it.
type Note struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	CreatedAt       time.Time        `json:"createdAt"`
	LastModified    time.Time        `json:"lastModified"`
	DurationSeconds int              `json:"durationSeconds"`
	AudioLocation   *string          `json:"audioLocation"`
	Transcript      *string          `json:"transcript"`
	Language        string           `json:"language,omitempty"`
	Category        *string          `json:"category"`
	IconRef         string           `json:"iconRef"`
	ColorStyle      types.ColorStyle `json:"colorStyle"`
	Status          Status           `json:"status"`
	Error           *string          `json:"error"`
	RetryCount      int              `json:"retryCount"`
}

// HasAudio reports whether the note references an audio artifact.
func (n *Note) HasAudio() bool {
	return n.AudioLocation != nil && *n.AudioLocation != ""
}

// clone returns a deep copy so callers never share pointers with the
// controller's state.
func (n *Note) clone() Note {
	c := *n
	c.AudioLocation = cloneString(n.AudioLocation)
	c.Transcript = cloneString(n.Transcript)
	c.Category = cloneString(n.Category)
	c.Error = cloneString(n.Error)
	return c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

func ptr(s string) *string { return &s }

// deref returns *p or "" for nil.
func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Draft is a finished recording handed to [Controller.Submit].
type Draft struct {
	// Title is optional; an empty title becomes the placeholder title.
	Title string

	// DurationSeconds is the recording length. Negative values are clamped
	// to zero.
	DurationSeconds int

	// AudioLocation is the transient capture file. Empty means the note has
	// no audio and completes immediately.
	AudioLocation string

	// CreatedAt defaults to the controller clock.
	CreatedAt time.Time
}

// Edits is a partial update for [Controller.UpdateNote]. Nil fields are left
// untouched.
type Edits struct {
	Title      *string
	Transcript *string
}

// AllCategories is the filter value matching every note.
const AllCategories = "all"

// Categories returns the category filter list in display order, starting
// with [AllCategories].
func Categories() []string {
	return append([]string{AllCategories}, classify.Names()...)
}

// FormatDuration renders seconds as "{m}m {s}s".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// FormatDate renders t like "Mar 14, 2025" in t's location.
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
