package main

import "github.com/charmbracelet/lipgloss"

var (
	purple = lipgloss.Color("99")
	cyan   = lipgloss.Color("86")
	red    = lipgloss.Color("196")
	yellow = lipgloss.Color("220")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	orange = lipgloss.Color("214")
	blue   = lipgloss.Color("75")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(gray).
			Width(10)

	focusedLabelStyle = lipgloss.NewStyle().
				Foreground(cyan).
				Width(10)

	hintStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true)

	errorStyle    = lipgloss.NewStyle().Foreground(red)
	typingStyle   = lipgloss.NewStyle().Foreground(yellow).Italic(true)
	badgeStyle    = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	tsStyle       = lipgloss.NewStyle().Foreground(gray)
	myNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(orange)
	peerStyle     = lipgloss.NewStyle().Bold(true).Foreground(blue)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(cyan)
)
