package tui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	BulletStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingRight(1)
	TextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	DimTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// words
	UpcomingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	ActiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3"))
	SungStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// lines
	ActiveLineStyle   = lipgloss.NewStyle().PaddingLeft(0)
	AdjacentLineStyle = lipgloss.NewStyle().PaddingLeft(2).Faint(true)
	LineStyle         = lipgloss.NewStyle().PaddingLeft(2)

	StatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(2)
)
