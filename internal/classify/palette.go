package classify

import "github.com/MrWong99/voicememo/pkg/types"

// Colour triples shared by the category table and the fallback palette.
var (
	purple     = types.ColorStyle{Icon: "#6c73ef", Background: "#f2f1fd", Border: "#bfbcec"}
	orange     = types.ColorStyle{Icon: "#f5ae3f", Background: "#fcf4ee", Border: "#fad6b9"}
	blue       = types.ColorStyle{Icon: "#6bb0ff", Background: "#ebf8ff", Border: "#95d9ff"}
	brown      = types.ColorStyle{Icon: "#ab630d", Background: "#fcf4ee", Border: "#fad6b9"}
	green      = types.ColorStyle{Icon: "#447d4e", Background: "#effaf1", Border: "#d1f0d7"}
	red        = types.ColorStyle{Icon: "#c52b45", Background: "#feecef", Border: "#fac7cf"}
	cyan       = types.ColorStyle{Icon: "#006eb3", Background: "#ebf8ff", Border: "#95d9ff"}
	indigo     = types.ColorStyle{Icon: "#120d3a", Background: "#f2f1fd", Border: "#bfbcec"}
	yellow     = types.ColorStyle{Icon: "#e0b000", Background: "#fffbea", Border: "#fde9a6"}
	teal       = types.ColorStyle{Icon: "#1c8c84", Background: "#e8f7f5", Border: "#b2e3de"}
	pink       = types.ColorStyle{Icon: "#d6457f", Background: "#fdeef4", Border: "#f7c3d7"}
	deepPurple = types.ColorStyle{Icon: "#5e35b1", Background: "#f1ecfa", Border: "#cdbdf0"}
	amber      = types.ColorStyle{Icon: "#e08a00", Background: "#fff6e5", Border: "#fcd9a1"}
	lime       = types.ColorStyle{Icon: "#7c9a12", Background: "#f5f9e6", Border: "#dcebac"}
)

// Palette is the set of colour triples the default category draws from.
var Palette = []types.ColorStyle{
	purple, orange, blue, brown, green, cyan,
	pink, teal, yellow, lime, deepPurple, amber,
}

// DraftStyle is the neutral grey presentation of a note that has not been
// classified yet.
var DraftStyle = types.ColorStyle{Icon: "#666666", Background: "#ececed", Border: "#999999"}

const (
	// DefaultCategory is reported when no keyword matched.
	DefaultCategory = "default"

	// DefaultIcon is used for the default category and for drafts.
	DefaultIcon = "microphone"
)
