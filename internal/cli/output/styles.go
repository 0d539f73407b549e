package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	AssetName lipgloss.Style
	Focus     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style

	StatusSuccess string
	StatusFailed  string
}

// NewStyles builds styles bound to a lipgloss renderer, so color support is
// detected per output rather than globally.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	s := &Styles{
		Header1:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:      lr.NewStyle().Bold(true),
		Muted:     lr.NewStyle().Foreground(lipgloss.Color("8")),
		AssetName: lr.NewStyle().Foreground(lipgloss.Color("10")),
		Focus:     lr.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		Success:   lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     lr.NewStyle().Foreground(lipgloss.Color("9")),
		Info:      lr.NewStyle().Foreground(lipgloss.Color("12")),
	}
	s.StatusSuccess = s.Success.Render("✓")
	s.StatusFailed = s.Error.Render("✗")
	return s
}
