package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/meghashyamc/churnsearch/services/notify"
)

// Styles contains the style definitions of the browse view
type Styles struct {
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Header    lipgloss.Style
	Cell      lipgloss.Style
	Cursor    lipgloss.Style
	Selected  lipgloss.Style
	Flyout    lipgloss.Style
	Status    lipgloss.Style
	Help      lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Danger    lipgloss.Style
	TableEdge lipgloss.Color
}

func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1),
		Dim:      lipgloss.NewStyle().Faint(true),
		Header:   lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:     lipgloss.NewStyle().Padding(0, 1),
		Cursor:   lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("238")),
		Selected: lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("226")),
		Flyout: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.Color("241")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		Help:      lipgloss.NewStyle().Faint(true),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("78")),  // green
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // yellow
		Danger:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")), // red
		TableEdge: lipgloss.Color("241"),
	}
}

func (s *Styles) toast(kind notify.Kind) lipgloss.Style {
	switch kind {
	case notify.KindSuccess:
		return s.Success
	case notify.KindWarning:
		return s.Warning
	default:
		return s.Danger
	}
}
