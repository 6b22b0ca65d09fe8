package color

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Environment variables read by Configure.
const (
	EnvNoColor = "NO_COLOR"
	EnvTheme   = "SCENARIOCTL_THEME"
)

// Semantic palette.
var (
	Success = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}
	Error   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	Warning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
	Muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

// Initialize sets whether the terminal has a dark background.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}

// Configure applies the color settings from the environment and the
// command line.
func Configure(noColor bool) {
	if _, set := os.LookupEnv(EnvNoColor); set || noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	switch strings.ToLower(os.Getenv(EnvTheme)) {
	case "dark":
		Initialize(true)
	case "light":
		Initialize(false)
	}
}
