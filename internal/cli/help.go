package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/timestruct/internal/logging"
	"github.com/linuxmatters/timestruct/internal/runner"
)

// Help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	helpTaglineStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true).
				MarginBottom(1)

	helpHeadingStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				MarginTop(1)

	helpNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	helpNoteStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// helpEntry is one line of a help section: a name column and its description.
type helpEntry struct {
	name string
	desc string
	note string
}

// outputFiles lists what a run writes next to each input, or into --output.
var outputFiles = []helpEntry{
	{name: "<name>" + runner.CollSuffix, desc: "one line per event: index, onset, peak and close (ms, amp)"},
	{name: "<name>" + runner.ScoreSuffix, desc: "clear, then one addchord per event"},
	{name: "<name>" + runner.EnvelopeSuffix, desc: "smoothed envelope", note: "--envelope"},
	{name: "<name>" + runner.PlotSuffix, desc: "envelope with dip and peak markers", note: "--plot"},
	{name: "<name>" + logging.ReportSuffix, desc: "analysis report", note: "--logs"},
}

// StyledHelpPrinter returns a kong help printer that lays out arguments,
// flags, environment variables and output files.
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render("Timestruct 〰"))
		sb.WriteString("\n")
		sb.WriteString(helpTaglineStyle.Render("Finds dip, peak, dip events in the amplitude envelope of WAV files"))
		sb.WriteString("\n")

		writeHelpSection(&sb, "Usage:", []helpEntry{{name: ctx.Model.Name + " [flags] <files> ..."}})
		writeHelpSection(&sb, "Arguments:", positionalEntries(ctx.Model.Node))
		writeHelpSection(&sb, "Flags:", flagEntries(ctx.Model.Node))
		writeHelpSection(&sb, "Environment:", envEntries(ctx.Model.Node))
		writeHelpSection(&sb, "Output files:", outputFiles)

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

// writeHelpSection writes a heading and its entries with the name column
// padded to the widest name. Empty sections are skipped.
func writeHelpSection(w io.StringWriter, heading string, entries []helpEntry) {
	if len(entries) == 0 {
		return
	}
	width := 0
	for _, e := range entries {
		width = max(width, lipgloss.Width(e.name))
	}

	w.WriteString("\n")
	w.WriteString(helpHeadingStyle.Render(heading))
	w.WriteString("\n")
	for _, e := range entries {
		w.WriteString("  ")
		w.WriteString(helpNameStyle.Render(e.name))
		if e.desc != "" {
			w.WriteString(strings.Repeat(" ", width-lipgloss.Width(e.name)+2))
			w.WriteString(e.desc)
		}
		if e.note != "" {
			w.WriteString(" ")
			w.WriteString(helpNoteStyle.Render("(" + e.note + ")"))
		}
		w.WriteString("\n")
	}
}

func positionalEntries(node *kong.Node) []helpEntry {
	var entries []helpEntry
	for _, arg := range node.Positional {
		entries = append(entries, helpEntry{name: arg.Summary(), desc: arg.Help})
	}
	return entries
}

func flagEntries(node *kong.Node) []helpEntry {
	entries := []helpEntry{{name: "-h, --help", desc: "Show this help."}}
	for _, f := range node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		name := "--" + f.Name
		if f.Short != 0 {
			name = fmt.Sprintf("-%c, %s", f.Short, name)
		}
		if !f.IsBool() {
			name += "=" + strings.ToUpper(f.FormatPlaceHolder())
		}

		var note string
		if f.Default != "" {
			note = "default: " + f.Default
		}
		entries = append(entries, helpEntry{name: name, desc: f.Help, note: note})
	}
	return entries
}

// envEntries lists the environment variables that set flag defaults. A .env
// file in the working directory is read before flags are parsed.
func envEntries(node *kong.Node) []helpEntry {
	var entries []helpEntry
	for _, f := range node.Flags {
		for _, env := range f.Envs {
			entries = append(entries, helpEntry{name: env, desc: "--" + f.Name})
		}
	}
	if len(entries) > 0 {
		entries = append(entries, helpEntry{name: ".env", desc: "read from the working directory"})
	}
	return entries
}
