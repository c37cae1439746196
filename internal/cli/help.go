package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#48CAE4")).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#48CAE4")).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAAA")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)
)

// entry is one line of a help section.
type entry struct {
	name       string
	help       string
	defaultVal string
}

// section is a titled block of help entries.
type section struct {
	title   string
	style   lipgloss.Style
	entries []entry
}

// outputs lists the files written next to each input recording.
var outputs = []entry{
	{name: "<name>-enhanced.wav", help: "enhanced speech at the target sample rate"},
	{name: "<name>-speakers.yaml", help: "speaker segments and voice profiles"},
	{name: "<name>-clinivox.log", help: "session report (with --logs)"},
}

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// Flags are grouped by their kong group tag in declaration order; ungrouped
// flags are listed under "Flags".
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render("Clinivox 🩺"))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render("Real-time clinical audio enhancement and speaker attribution"))
		sb.WriteString("\n")

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		fmt.Fprintf(&sb, "%s [flags] <recordings> ...", ctx.Model.Name)
		sb.WriteString("\n")

		sections := []section{{title: "Arguments", style: helpArgStyle, entries: arguments(ctx)}}
		sections = append(sections, flagSections(ctx)...)
		sections = append(sections, section{title: "Outputs", style: helpArgStyle, entries: outputs})

		for _, sec := range sections {
			writeSection(&sb, sec)
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

func writeSection(sb *strings.Builder, sec section) {
	if len(sec.entries) == 0 {
		return
	}
	width := 0
	for _, e := range sec.entries {
		width = max(width, len(e.name))
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(sec.title + ":"))
	sb.WriteString("\n")
	for _, e := range sec.entries {
		sb.WriteString("  ")
		sb.WriteString(sec.style.Render(e.name))
		if e.help != "" {
			sb.WriteString(strings.Repeat(" ", width-len(e.name)+2))
			sb.WriteString(e.help)
		}
		if e.defaultVal != "" {
			sb.WriteString(" ")
			sb.WriteString(helpDefaultStyle.Render("(default: " + e.defaultVal + ")"))
		}
		sb.WriteString("\n")
	}
}

func arguments(ctx *kong.Context) []entry {
	var args []entry
	for _, arg := range ctx.Model.Node.Positional {
		args = append(args, entry{name: arg.Summary(), help: arg.Help})
	}
	return args
}

// flagSections groups the model's flags, keeping first-seen group order.
func flagSections(ctx *kong.Context) []section {
	general := section{title: "Flags", style: helpFlagStyle, entries: []entry{
		{name: "-h, --help", help: "Show context-sensitive help."},
	}}
	var grouped []section
	index := make(map[string]int)

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		name := "--" + f.Name
		if f.Short != 0 {
			name = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		if !f.IsBool() && f.PlaceHolder != "" {
			name += "=" + strings.ToUpper(f.PlaceHolder)
		}
		e := entry{name: name, help: f.Help, defaultVal: f.Default}
		if f.IsBool() {
			e.defaultVal = ""
		}

		if f.Group == nil {
			general.entries = append(general.entries, e)
			continue
		}
		i, ok := index[f.Group.Title]
		if !ok {
			i = len(grouped)
			index[f.Group.Title] = i
			grouped = append(grouped, section{title: f.Group.Title, style: helpFlagStyle})
		}
		grouped[i].entries = append(grouped[i].entries, e)
	}

	return append([]section{general}, grouped...)
}
