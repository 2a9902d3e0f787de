package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
)

// Console colours for output that does not go through the reader.
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgBlue)
	faintColor   = color.New(color.Faint)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen)
)
