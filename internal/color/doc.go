// Package color holds the terminal palette used by console output.
//
// Colors are lipgloss adaptive colors: each has a light and a dark variant and
// the renderer picks one based on the terminal background. Configure turns
// color off entirely when NO_COLOR is set or --no-color is passed, and
// SCENARIOCTL_THEME=dark|light forces the background instead of detecting it.
//
// # Usage Example
//
//	color.Configure(noColor)
//	passed := lipgloss.NewStyle().Foreground(color.Success).Bold(true)
//	fmt.Println(passed.Render("✓ PASS"))
package color
