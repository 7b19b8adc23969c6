package shell

import "github.com/charmbracelet/lipgloss"

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	tabUnread   lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	sidebarItem lipgloss.Style
	sidebarPick lipgloss.Style
	sidebarDim  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	link        lipgloss.Style
	helpText    lipgloss.Style
	overlay     lipgloss.Style
	overlayPick lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Background(pink).
			Foreground(lipgloss.Color("#22062f")).
			Bold(true).
			Padding(0, 1),
		tabInactive: lipgloss.NewStyle().
			Background(lipgloss.Color("#2a184a")).
			Foreground(muted).
			Padding(0, 1),
		tabUnread: lipgloss.NewStyle().
			Background(lipgloss.Color("#2a184a")).
			Foreground(mint).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		sidebarItem: lipgloss.NewStyle().
			Foreground(text),
		sidebarPick: lipgloss.NewStyle().
			Background(pink).
			Foreground(lipgloss.Color("#22062f")).
			Bold(true),
		sidebarDim: lipgloss.NewStyle().
			Foreground(muted),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			Padding(0, 1),
		status: lipgloss.NewStyle().
			Foreground(mint),
		errorStatus: lipgloss.NewStyle().
			Foreground(pink).
			Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		link: lipgloss.NewStyle().
			Foreground(blue).
			Underline(true),
		helpText: lipgloss.NewStyle().
			Foreground(muted),
		overlay: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(pink).
			Padding(1, 2),
		overlayPick: lipgloss.NewStyle().
			Background(blue).
			Foreground(lipgloss.Color("#22062f")).
			Bold(true),
	}
}
