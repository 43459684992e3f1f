// Package colors provides the terminal palette used by machedit's output.
//
// Colors are disabled automatically when stdout is not a terminal; fatih/color
// handles the detection. Init overrides it from the --color/--no-color flags.
package colors

import "github.com/fatih/color"

// Init overrides the auto-detected color setting. A nil forceColor keeps the
// detected value.
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

func Bold() *color.Color        { return color.New(color.Bold) }
func BoldHiBlue() *color.Color  { return color.New(color.Bold, color.FgHiBlue) }
func BoldMagenta() *color.Color { return color.New(color.Bold, color.FgMagenta) }
func Green() *color.Color       { return color.New(color.FgGreen) }
func Red() *color.Color         { return color.New(color.FgRed) }
func Yellow() *color.Color      { return color.New(color.FgYellow) }
func FaintHiBlue() *color.Color { return color.New(color.Faint, color.FgHiBlue) }
func ItalicFaint() *color.Color { return color.New(color.Italic, color.Faint) }

// Modified highlights patched bytes.
func Modified() *color.Color { return color.New(color.Bold, color.FgBlack, color.BgHiYellow) }
