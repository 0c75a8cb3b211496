package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var noColor bool

func colorDisabled() bool {
	return noColor || strings.TrimSpace(os.Getenv("NO_COLOR")) != ""
}

// ApplyColorProfile sets Lip Gloss's color profile for CLI output. Unlike an
// interactive screen, piped output follows CLICOLOR/CLICOLOR_FORCE through
// termenv.EnvColorProfile.
func ApplyColorProfile(disable bool) {
	noColor = disable
	if colorDisabled() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.EnvColorProfile()
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if profile != termenv.Ascii && (strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit")) {
		profile = termenv.TrueColor
	}
	lipgloss.SetColorProfile(profile)
}

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#1F5FBF", Dark: "#7AA2F7"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#8A8A8A"}
	colorDirty  = lipgloss.AdaptiveColor{Light: "#B35900", Dark: "#E0AF68"}
)

func styleHeading(level int) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(colorAccent)
	if level <= 2 {
		s = s.Bold(true)
	}
	return s
}

func styleMuted() lipgloss.Style { return lipgloss.NewStyle().Foreground(colorMuted) }

func styleDirty() lipgloss.Style { return lipgloss.NewStyle().Foreground(colorDirty) }
