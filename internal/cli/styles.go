// Package cli holds the terminal styling for timestruct's help, version and
// error output.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#0087AF")
	accentColor  = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#888888")
	errorColor   = lipgloss.Color("#A40000")
)

var (
	versionStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	keyStyle     = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle   = lipgloss.NewStyle().Bold(true)
)

// PrintVersion writes the program name and version.
func PrintVersion(w io.Writer, version string) {
	fmt.Fprintf(w, "%s %s\n", versionStyle.Render("timestruct"), version)
}

// PrintKeyValue writes "key: value" with the key muted.
func PrintKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s %s\n", keyStyle.Render(key+":"), valueStyle.Render(value))
}

// PrintError writes message to stderr.
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("timestruct:"), message)
}
