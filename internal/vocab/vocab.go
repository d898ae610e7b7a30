// Package vocab fixes the spelling of known terms in transcripts.
//
// Speech-to-text models misspell names and jargon they have not seen ("kuber
// netties" for "Kubernetes"). A [Corrector] holds the user's vocabulary and
// replaces spans of a transcript that sound like, or are spelled almost like,
// one of its terms.
//
// A span of one to len(term)+1 words is compared with each term after
// lower-casing and removing spaces:
//
//   - Double Metaphone codes of span and term overlap and their Jaro-Winkler
//     similarity reaches the phonetic threshold, or
//   - the Jaro-Winkler similarity alone reaches the (higher) fuzzy threshold.
//
// At every position the best scoring span wins and the scan resumes after it.
package vocab

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	DefaultPhoneticThreshold = 0.80
	DefaultFuzzyThreshold    = 0.95

	// minSpanLen skips spans too short to compare meaningfully ("a", "I").
	minSpanLen = 3
)

// Correction is one replaced span.
type Correction struct {
	Original  string
	Corrected string
	Score     float64
	Phonetic  bool
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the similarity needed when the phonetic codes
// agree.
func WithPhoneticThreshold(v float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = v }
}

// WithFuzzyThreshold sets the similarity needed without phonetic agreement.
func WithFuzzyThreshold(v float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = v }
}

type term struct {
	text    string // as configured
	key     string // lower-case, spaces removed
	words   int
	codes   [2]string
}

// Corrector is immutable after [New] and safe for concurrent use.
type Corrector struct {
	terms             []term
	maxWords          int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New prepares terms. Blank terms are ignored.
func New(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: DefaultPhoneticThreshold,
		fuzzyThreshold:    DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	for _, t := range terms {
		words := strings.Fields(t)
		if len(words) == 0 {
			continue
		}
		key := strings.ToLower(strings.Join(words, ""))
		p, s := matchr.DoubleMetaphone(key)
		c.terms = append(c.terms, term{
			text:  strings.Join(words, " "),
			key:   key,
			words: len(words),
			codes: [2]string{p, s},
		})
		c.maxWords = max(c.maxWords, len(words)+1)
	}
	return c
}

// Len returns the number of usable terms.
func (c *Corrector) Len() int { return len(c.terms) }

// Correct returns text with every recognised span replaced by its term,
// together with the replacements made. Whitespace is normalised to single
// spaces when anything was replaced.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if c == nil || len(c.terms) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}
	keys := make([]string, len(tokens))
	for i, tok := range tokens {
		keys[i] = strings.ToLower(strings.TrimFunc(tok, isPunct))
	}

	var (
		out   []string
		fixes []Correction
	)
	for i := 0; i < len(tokens); {
		n, best, ok := c.bestSpan(keys[i:])
		if !ok {
			out = append(out, tokens[i])
			i++
			continue
		}
		span := tokens[i : i+n]
		original := strings.Join(span, " ")
		replaced := leadingPunct(span[0]) + best.text + trailingPunct(span[n-1])
		out = append(out, replaced)
		if replaced != original {
			best.Original = strings.TrimFunc(original, isPunct)
			fixes = append(fixes, best.Correction)
		}
		i += n
	}
	if len(fixes) == 0 {
		return text, nil
	}
	return strings.Join(out, " "), fixes
}

type match struct {
	Correction
	text string
}

// bestSpan finds the highest scoring span starting at keys[0].
func (c *Corrector) bestSpan(keys []string) (int, match, bool) {
	var (
		bestN int
		best  match
	)
	for n := 1; n <= min(c.maxWords, len(keys)); n++ {
		key := strings.Join(keys[:n], "")
		if len(key) < minSpanLen {
			continue
		}
		p, s := matchr.DoubleMetaphone(key)
		for _, t := range c.terms {
			if n > t.words+1 {
				continue
			}
			score := matchr.JaroWinkler(key, t.key, false)
			phonetic := codesOverlap([2]string{p, s}, t.codes)
			if !(phonetic && score >= c.phoneticThreshold) && score < c.fuzzyThreshold {
				continue
			}
			if score > best.Score {
				bestN = n
				best = match{
					Correction: Correction{Corrected: t.text, Score: score, Phonetic: phonetic},
					text:       t.text,
				}
			}
		}
	}
	return bestN, best, bestN > 0
}

func codesOverlap(a, b [2]string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func isPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func leadingPunct(tok string) string {
	return tok[:len(tok)-len(strings.TrimLeftFunc(tok, isPunct))]
}

func trailingPunct(tok string) string {
	return tok[len(strings.TrimRightFunc(tok, isPunct)):]
}
