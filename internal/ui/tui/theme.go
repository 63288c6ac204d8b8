package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/config"
)

// Catppuccin Mocha palette. Green marks verified data, red marks
// unreadable regions and write-block failures, yellow marks warnings.
// The first six can be overridden from the [theme] table.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorMuted  = lipgloss.Color("#5a6278")
	ColorBright = lipgloss.Color("#cdd6f4")
	ColorTeal   = lipgloss.Color("#94e2d5")
	ColorMauve  = lipgloss.Color("#cba6f7")
	ColorDim    = lipgloss.Color("#3a4055")
)

// Styles derived from the palette.
var (
	styleHeader         lipgloss.Style
	styleHeaderLabel    lipgloss.Style
	styleDivider        lipgloss.Style
	styleIconDone       lipgloss.Style
	styleIconFailed     lipgloss.Style
	styleIconInfo       lipgloss.Style
	styleFilePath       lipgloss.Style
	styleFileDir        lipgloss.Style
	styleMuted          lipgloss.Style
	styleSpeed          lipgloss.Style
	styleWarning        lipgloss.Style
	styleError          lipgloss.Style
	styleOffset         lipgloss.Style
	styleKeybindKey     lipgloss.Style
	styleKeybindLabel   lipgloss.Style
	styleBigNumber      lipgloss.Style
	styleSparkline      lipgloss.Style
	styleProgressFilled lipgloss.Style
	styleProgressEmpty  lipgloss.Style
	styleStatus         lipgloss.Style
	styleSavePrompt     lipgloss.Style
	styleSaveInput      lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	styleHeaderLabel = lipgloss.NewStyle().Bold(true).Foreground(ColorMauve)
	styleDivider = lipgloss.NewStyle().Foreground(ColorDim)
	styleIconDone = lipgloss.NewStyle().Foreground(ColorGreen)
	styleIconFailed = lipgloss.NewStyle().Foreground(ColorRed)
	styleIconInfo = lipgloss.NewStyle().Foreground(ColorBlue)
	styleFilePath = lipgloss.NewStyle().Foreground(ColorBright)
	styleFileDir = lipgloss.NewStyle().Foreground(ColorMuted)
	styleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	styleSpeed = lipgloss.NewStyle().Foreground(ColorTeal)
	styleWarning = lipgloss.NewStyle().Foreground(ColorYellow)
	styleError = lipgloss.NewStyle().Foreground(ColorRed)
	styleOffset = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	styleKeybindKey = lipgloss.NewStyle().Foreground(ColorMauve).Bold(true)
	styleKeybindLabel = lipgloss.NewStyle().Foreground(ColorMuted)
	styleBigNumber = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	styleSparkline = lipgloss.NewStyle().Foreground(ColorBlue)
	styleProgressFilled = lipgloss.NewStyle().Foreground(ColorGreen)
	styleProgressEmpty = lipgloss.NewStyle().Foreground(ColorDim)
	styleStatus = lipgloss.NewStyle().Foreground(ColorYellow).Italic(true)
	styleSavePrompt = lipgloss.NewStyle().Foreground(ColorMuted)
	styleSaveInput = lipgloss.NewStyle().Foreground(ColorBright)
}

// ApplyTheme overrides the configurable colors and rebuilds all styles.
// Unset keys keep their current value.
func ApplyTheme(tc config.ThemeConfig) {
	overrides := []struct {
		value *string
		color *lipgloss.Color
	}{
		{tc.Green, &ColorGreen},
		{tc.Blue, &ColorBlue},
		{tc.Yellow, &ColorYellow},
		{tc.Red, &ColorRed},
		{tc.Muted, &ColorMuted},
		{tc.Bright, &ColorBright},
	}
	for _, o := range overrides {
		if o.value != nil && *o.value != "" {
			*o.color = lipgloss.Color(*o.value)
		}
	}
	rebuildStyles()
}
