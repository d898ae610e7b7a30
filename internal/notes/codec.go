package notes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/MrWong99/voicememo/internal/classify"
	"github.com/MrWong99/voicememo/pkg/types"
)

// DefaultStoreKey is the key the collection is persisted under.
const DefaultStoreKey = "voicememo-notes"

// envelopeVersion is written into every snapshot. Snapshots with a higher
// version are refused rather than silently truncated.
const envelopeVersion = 0

// isoTimestamp matches the RFC 3339 text written by [Encode].
var isoTimestamp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)

type envelope struct {
	State   snapshot `json:"state"`
	Version int      `json:"version"`
}

type snapshot struct {
	Notes []Note `json:"notes"`
}

type wireEnvelope struct {
	State struct {
		Notes []wireNote `json:"notes"`
	} `json:"state"`
	Version int `json:"version"`
}

// wireNote mirrors [Note] with the date fields left raw so they can be
// revived by [reviveTime].
type wireNote struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	CreatedAt       json.RawMessage  `json:"createdAt"`
	LastModified    json.RawMessage  `json:"lastModified"`
	DurationSeconds int              `json:"durationSeconds"`
	AudioLocation   *string          `json:"audioLocation"`
	Transcript      *string          `json:"transcript"`
	Language        string           `json:"language"`
	Category        *string          `json:"category"`
	IconRef         string           `json:"iconRef"`
	ColorStyle      types.ColorStyle `json:"colorStyle"`
	Status          Status           `json:"status"`
	Error           *string          `json:"error"`
	RetryCount      int              `json:"retryCount"`
}

// Encode serialises notes into the persisted envelope. Dates are written as
// RFC 3339 text in UTC.
func Encode(notes []Note) ([]byte, error) {
	out := make([]Note, len(notes))
	for i := range notes {
		out[i] = notes[i].clone()
		out[i].CreatedAt = out[i].CreatedAt.UTC()
		out[i].LastModified = out[i].LastModified.UTC()
	}
	data, err := json.Marshal(envelope{State: snapshot{Notes: out}, Version: envelopeVersion})
	if err != nil {
		return nil, fmt.Errorf("notes: encode: %w", err)
	}
	return data, nil
}

// Decode parses a persisted envelope. Date fields are revived from RFC 3339
// text or epoch milliseconds; anything else leaves them zero for
// [Normalize] to repair. Decode does not normalise.
func Decode(data []byte) ([]Note, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("notes: decode: %w", err)
	}
	if env.Version > envelopeVersion {
		return nil, fmt.Errorf("notes: decode: unsupported snapshot version %d", env.Version)
	}
	out := make([]Note, 0, len(env.State.Notes))
	for _, w := range env.State.Notes {
		n := Note{
			ID:              w.ID,
			Title:           w.Title,
			DurationSeconds: w.DurationSeconds,
			AudioLocation:   w.AudioLocation,
			Transcript:      w.Transcript,
			Language:        w.Language,
			Category:        w.Category,
			IconRef:         w.IconRef,
			ColorStyle:      w.ColorStyle,
			Status:          w.Status,
			Error:           w.Error,
			RetryCount:      w.RetryCount,
		}
		n.CreatedAt, _ = reviveTime(w.CreatedAt)
		n.LastModified, _ = reviveTime(w.LastModified)
		out = append(out, n)
	}
	return out, nil
}

var errNotTimestamp = errors.New("notes: value is not a timestamp")

// reviveTime turns a raw JSON value into a time. Strings must match
// [isoTimestamp]; numbers are read as epoch milliseconds.
func reviveTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, errNotTimestamp
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if !isoTimestamp.MatchString(s) {
			return time.Time{}, errNotTimestamp
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, errNotTimestamp
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// Normalize repairs a decoded note in place so that it satisfies the note
// invariants: known status (missing means completed), retry count within
// [0, maxRetries], error only on failed notes, both dates set, presentation
// attributes present and empty optional strings treated as absent.
func Normalize(n *Note, maxRetries int, now time.Time) {
	if !n.Status.Valid() {
		n.Status = StatusCompleted
	}
	if n.RetryCount < 0 {
		n.RetryCount = 0
	}
	if n.RetryCount > maxRetries {
		n.RetryCount = maxRetries
	}
	if n.DurationSeconds < 0 {
		n.DurationSeconds = 0
	}
	if n.Status != StatusFailed {
		n.Error = nil
	}
	if n.AudioLocation != nil && *n.AudioLocation == "" {
		n.AudioLocation = nil
	}
	if n.Category != nil && *n.Category == "" {
		n.Category = nil
	}

	switch {
	case n.CreatedAt.IsZero() && !n.LastModified.IsZero():
		n.CreatedAt = n.LastModified
	case n.CreatedAt.IsZero():
		n.CreatedAt = now
	}
	if n.LastModified.Before(n.CreatedAt) {
		n.LastModified = n.CreatedAt
	}

	if n.IconRef == "" {
		n.IconRef = classify.Icon(deref(n.Category))
	}
	if n.ColorStyle.IsZero() {
		n.ColorStyle = classify.DraftStyle
	}
}
