package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the TUI.
type Theme struct {
	BgDark lipgloss.Color

	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color
	TextMuted   lipgloss.Color

	Border        lipgloss.Color
	BorderFocused lipgloss.Color

	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Running lipgloss.Color
}

// DefaultTheme is a Tokyo Night style dark palette.
var DefaultTheme = Theme{
	BgDark: lipgloss.Color("#1a1b26"),

	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),
	TextMuted:   lipgloss.Color("#414868"),

	Border:        lipgloss.Color("#414868"),
	BorderFocused: lipgloss.Color("#7aa2f7"),

	Accent:  lipgloss.Color("#7aa2f7"), // Blue
	Success: lipgloss.Color("#9ece6a"), // Green
	Warning: lipgloss.Color("#e0af68"), // Amber
	Error:   lipgloss.Color("#f7768e"), // Red/Pink
	Running: lipgloss.Color("#e0af68"),
}

// Styles provides pre-configured lipgloss styles using the theme.
type Styles struct {
	Base     lipgloss.Style
	Dim      lipgloss.Style
	Muted    lipgloss.Style
	Title    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Running  lipgloss.Style
	Selected lipgloss.Style
	Cursor   lipgloss.Style

	KeyBinding lipgloss.Style
	KeyHint    lipgloss.Style

	Box        lipgloss.Style
	BoxFocused lipgloss.Style

	Label lipgloss.Style
	Value lipgloss.Style
	Hint  lipgloss.Style

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style

	Footer lipgloss.Style
}

// NewStyles creates a new Styles instance from a Theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Base:  lipgloss.NewStyle().Foreground(t.TextPrimary),
		Dim:   lipgloss.NewStyle().Foreground(t.TextDim),
		Muted: lipgloss.NewStyle().Foreground(t.TextMuted),
		Title: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			Padding(0, 1),

		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
		Running: lipgloss.NewStyle().Foreground(t.Running).Bold(true),

		Selected: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),
		Cursor: lipgloss.NewStyle().
			Foreground(t.BgDark).
			Background(t.Accent),

		KeyBinding: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),
		KeyHint: lipgloss.NewStyle().
			Foreground(t.TextDim),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		BoxFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocused).
			Padding(0, 1),

		Label: lipgloss.NewStyle().
			Foreground(t.TextDim).
			Width(8),
		Value: lipgloss.NewStyle().
			Foreground(t.TextPrimary),
		Hint: lipgloss.NewStyle().
			Foreground(t.TextMuted),

		TabActive: lipgloss.NewStyle().
			Foreground(t.BgDark).
			Background(t.Accent).
			Padding(0, 1),
		TabInactive: lipgloss.NewStyle().
			Foreground(t.TextDim).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(t.TextDim),
	}
}

// DefaultStyles returns styles using the default theme.
var DefaultStyles = NewStyles(DefaultTheme)

// RadioIcon returns a styled radio button.
func RadioIcon(selected bool, s Styles) string {
	if selected {
		return s.Selected.Render("●")
	}
	return s.Dim.Render("○")
}
