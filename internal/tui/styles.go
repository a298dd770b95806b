package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.AdaptiveColor{Dark: "#7C8CF8", Light: "#4F6BED"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	colorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(colorAccent).
			Padding(0, 1)

	addressStyle = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	providerTag  = lipgloss.NewStyle().Foreground(colorAccent).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorGray)

	statsStyle = lipgloss.NewStyle().Foreground(colorGray).Italic(true)

	// List rows
	rowStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedRowStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Bold(true).
				Foreground(colorAccent).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(colorAccent)
	unreadMarkStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	unreadSubject   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	readSubject     = lipgloss.NewStyle().Foreground(colorWhite)
	fromStyle       = lipgloss.NewStyle().Foreground(colorGray)

	// Detail view
	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(0, 1)
	headerKeyStyle = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)

	// Status bar
	statusNormalStyle = lipgloss.NewStyle().Foreground(colorWhite).Background(colorSubtle).Padding(0, 1)
	statusErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(colorRed).Padding(0, 1)
	statusNoticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(colorYellow).Padding(0, 1)
	helpStyle         = lipgloss.NewStyle().Foreground(colorGray).Italic(true)

	emptyStyle = lipgloss.NewStyle().Foreground(colorGray).Padding(1, 2)
)
