// Package types defines the shared types used across voicememo packages.
//
// These types are the lingua franca between providers, the classifier and the
// note lifecycle controller. Each package defines its own domain types;
// cross-cutting data structures live here to avoid circular imports.
package types

// Transcription is the result of a batch speech-to-text request for a single
// recorded audio artifact.
type Transcription struct {
	// Text is the full transcribed speech content.
	Text string

	// Language is the detected (or requested) language of the speech, as
	// reported by the provider (e.g. "en", "german"). May be empty.
	Language string
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ColorStyle is the presentation triple attached to a note: the colour of its
// icon, the background of its card and the card border. Values are CSS-style
// hex strings.
type ColorStyle struct {
	Icon       string `json:"icon"`
	Background string `json:"background"`
	Border     string `json:"border"`
}

// IsZero reports whether no colour has been assigned.
func (c ColorStyle) IsZero() bool {
	return c == ColorStyle{}
}

// CategoryResult is the output of the category classifier.
type CategoryResult struct {
	// Category is the stable category identifier (e.g. "meeting"), or
	// "default" when no category matched.
	Category string

	// Icon is the symbolic icon reference for the category.
	Icon string

	// Color is the colour triple for the category.
	Color ColorStyle

	// Confidence is in [0, 1]. Zero for the default category.
	Confidence float64
}
