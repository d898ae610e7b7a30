// Package classify assigns a transcript to one of a fixed set of note
// categories by keyword scoring.
//
// Each category carries a keyword list. A multi-word keyword ("what if")
// scores 2 when it appears as a substring; a single word scores 1 when it
// appears on word boundaries. The highest scoring category wins, ties going
// to the category listed first. Texts shorter than [MinLength] characters or
// without any match fall into [DefaultCategory] with a random palette colour.
//
// The classifier is pure apart from that random choice, which is injectable
// with [WithPicker].
package classify

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voicememo/pkg/types"
)

// MinLength is the minimum transcript length (in characters) for keyword
// scoring to run.
const MinLength = 10

// maxScore is the score at which confidence saturates at 1.
const maxScore = 5

type category struct {
	name     string
	icon     string
	color    types.ColorStyle
	keywords []string
}

// categories is ordered; the order breaks score ties.
var categories = []category{
	{"meeting", "calendar-clock", purple, []string{
		"meeting", "standup", "sync", "call", "conference", "agenda", "attendees", "minutes", "discuss", "huddle"}},
	{"idea", "lightbulb-outline", yellow, []string{
		"idea", "brainstorm", "think", "concept", "imagine", "what if", "creative", "innovation", "thought", "inspiration"}},
	{"shopping", "cart-outline", teal, []string{
		"buy", "shop", "grocery", "groceries", "list", "store", "purchase", "order", "amazon", "price", "cart"}},
	{"task", "checkbox-marked-outline", orange, []string{
		"todo", "task", "remind", "reminder", "remember", "don't forget", "need to", "have to", "deadline", "due"}},
	{"health", "heart-pulse", red, []string{
		"doctor", "health", "medicine", "appointment", "exercise", "workout", "gym", "run", "diet", "symptoms", "medical"}},
	{"travel", "airplane", blue, []string{
		"travel", "trip", "flight", "hotel", "vacation", "book", "itinerary", "passport", "airport", "destination"}},
	{"finance", "cash-multiple", green, []string{
		"money", "budget", "expense", "pay", "invoice", "account", "bank", "investment", "salary", "savings", "cost"}},
	{"learning", "school-outline", deepPurple, []string{
		"learn", "study", "course", "book", "read", "class", "lecture", "tutorial", "practice", "education", "school"}},
	{"work", "briefcase-outline", indigo, []string{
		"project", "client", "deadline", "report", "presentation", "email", "boss", "colleague", "office", "review"}},
	{"personal", "account-heart-outline", pink, []string{
		"journal", "diary", "thoughts", "feelings", "reflection", "personal", "life", "grateful", "mood", "myself"}},
	{"food", "food-outline", amber, []string{
		"recipe", "cook", "dinner", "lunch", "breakfast", "restaurant", "food", "meal", "ingredient", "ingredients", "eat"}},
}

// matcher is a compiled keyword.
type matcher struct {
	phrase string         // set for multi-word keywords
	word   *regexp.Regexp // set for single words
}

func (m matcher) score(lower string) int {
	if m.word == nil {
		if strings.Contains(lower, m.phrase) {
			return 2
		}
		return 0
	}
	if m.word.MatchString(lower) {
		return 1
	}
	return 0
}

var matchers = compile()

func compile() [][]matcher {
	out := make([][]matcher, len(categories))
	for i, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(kw, " ") {
				out[i] = append(out[i], matcher{phrase: kw})
				continue
			}
			out[i] = append(out[i], matcher{word: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)})
		}
	}
	return out
}

// Names returns the category identifiers in display order, excluding
// [DefaultCategory].
func Names() []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.name
	}
	return names
}

// Icon returns the icon for a category name, or [DefaultIcon] if unknown.
func Icon(name string) string {
	for _, c := range categories {
		if c.name == name {
			return c.icon
		}
	}
	return DefaultIcon
}

// Option configures a [Classifier].
type Option func(*Classifier)

// WithPicker replaces the random index source used for the default colour.
// pick(n) must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(c *Classifier) { c.pick = pick }
}

// Classifier scores transcripts against the category table.
type Classifier struct {
	pick func(n int) int
}

// New returns a Classifier using math/rand/v2 for default colours.
func New(opts ...Option) *Classifier {
	c := &Classifier{pick: rand.IntN}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify scores text against every category and returns the best match.
func (c *Classifier) Classify(text string) types.CategoryResult {
	if utf8.RuneCountInString(text) < MinLength {
		return c.fallback()
	}
	lower := strings.ToLower(text)

	best, bestScore := -1, 0
	for i, ms := range matchers {
		score := 0
		for _, m := range ms {
			score += m.score(lower)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return c.fallback()
	}

	cat := categories[best]
	return types.CategoryResult{
		Category:   cat.name,
		Icon:       cat.icon,
		Color:      cat.color,
		Confidence: min(float64(bestScore)/maxScore, 1),
	}
}

func (c *Classifier) fallback() types.CategoryResult {
	return types.CategoryResult{
		Category: DefaultCategory,
		Icon:     DefaultIcon,
		Color:    Palette[c.pick(len(Palette))],
	}
}

var std = New()

// Classify runs the package default [Classifier].
func Classify(text string) types.CategoryResult {
	return std.Classify(text)
}
