package main

import (
	"fmt"
	"io"
	"os"

	"github.com/anantham/nutrilens"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent      = lipgloss.Color("#E07A2F") // turmeric
	colorAccentLight = lipgloss.Color("#F2A65A")
	colorText        = lipgloss.Color("#F2F3F3")
	colorMuted       = lipgloss.Color("240")

	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle   = lipgloss.NewStyle().Foreground(colorAccentLight).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(colorText)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "⚠"
	iconInfo    = "●"
)

// isTTY returns true if stdout is a terminal
func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func render(style lipgloss.Style, s string) string {
	if isTTY() {
		return style.Render(s)
	}
	return s
}

// printStyled prints a message with an icon, applying style only in TTY mode
func printStyled(w io.Writer, icon string, style lipgloss.Style, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", render(style, icon), fmt.Sprintf(format, args...))
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconSuccess, successStyle, format, args...)
}

func printError(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconError, errorStyle, format, args...)
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconWarning, warningStyle, format, args...)
}

func printInfo(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconInfo, infoStyle, format, args...)
}

func printMuted(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, render(mutedStyle, fmt.Sprintf(format, args...)))
}

// printField prints an aligned "label value" line.
func printField(w io.Writer, label string, format string, args ...interface{}) {
	fmt.Fprintf(w, "  %s %s\n", render(labelStyle, fmt.Sprintf("%-14s", label+":")), render(valueStyle, fmt.Sprintf(format, args...)))
}

// printIssue prints a validation issue with an icon for its severity.
func printIssue(w io.Writer, issue nutrilens.ValidationIssue) {
	icon, style := iconWarning, warningStyle
	if issue.Severity == nutrilens.SeverityError {
		icon, style = iconError, errorStyle
	}
	msg := fmt.Sprintf("%s: %s", issue.Field, issue.Message)
	if issue.SuggestedFix != nil {
		msg += fmt.Sprintf(" (suggested: %.1f)", *issue.SuggestedFix)
	}
	printStyled(w, icon, style, "%s", msg)
}
