// Package tui implements the Bubble Tea chat view for ntfyc.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/ntfyc/internal/styles"
)

// Styles used for rendering the chat view.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorBlue).
			PaddingLeft(1)

	hostStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)

	connectedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(styles.ColorGray)

	pendingStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow)

	labelStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			PaddingLeft(1)

	focusedLabelStyle = lipgloss.NewStyle().
				Foreground(styles.ColorBlue).
				Bold(true).
				PaddingLeft(1)

	messageTitleStyle = lipgloss.NewStyle().
				Foreground(styles.ColorWhite).
				Bold(true)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(styles.ColorGray).
				Italic(true).
				PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorRed).
			PaddingLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)
)

// Icons and symbols.
const (
	iconConnected    = "●"
	iconDisconnected = "○"
	iconDot          = "•"
)
