// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminals.
const (
	// ColorPrimary is used for titles and headers.
	ColorPrimary = lipgloss.Color("#0EA5E9")
	// ColorMuted is used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")
	// ColorSuccess marks completed steps.
	ColorSuccess = lipgloss.Color("#10B981")
	// ColorError marks failures.
	ColorError = lipgloss.Color("#EF4444")
	// ColorWarning marks degraded but usable states.
	ColorWarning = lipgloss.Color("#F59E0B")
	// ColorHighlight is used for commands, paths and keys.
	ColorHighlight = lipgloss.Color("#A78BFA")
)

var (
	// TitleStyle is for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary text and empty-state notes.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for check marks and success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for failure marks.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for command names, paths and config keys.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)

func checkMark() string { return SuccessStyle.Render("✓") }

func crossMark() string { return ErrorStyle.Render("✗") }

func warnMark() string { return WarningStyle.Render("!") }
