package main

import (
	"text/template"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Command groups shown in root help.
const (
	groupData     = "data"
	groupInsights = "insights"
)

var (
	helpHeaderStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	helpCmdStyle    = lipgloss.NewStyle().Foreground(colorPrimaryLight)
)

// styleIfTTY wraps a style as a template function that is a no-op when
// stdout is not a terminal.
func styleIfTTY(style lipgloss.Style) func(string) string {
	return func(s string) string {
		if isTTY() {
			return style.Render(s)
		}
		return s
	}
}

var helpTemplateFuncs = template.FuncMap{
	"header": styleIfTTY(helpHeaderStyle),
	"cmd":    styleIfTTY(helpCmdStyle),
	"muted":  styleIfTTY(mutedStyle),
}

const helpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{header "Usage:"}}
  {{cmd .UseLine}}{{if .HasAvailableSubCommands}} {{muted "[command]"}}{{end}}

{{end}}{{if .HasExample}}{{header "Examples:"}}
{{.Example}}

{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{range $group := .Groups}}{{header $group.Title}}
{{range $cmds}}{{if (and (eq .GroupID $group.ID) .IsAvailableCommand)}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{if not .AllChildCommandsHaveGroup}}{{header "Other Commands:"}}
{{range $cmds}}{{if (and (eq .GroupID "") .IsAvailableCommand)}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{end}}{{if .HasAvailableLocalFlags}}{{header "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}{{header "Global Flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}{{muted "Use"}} {{cmd (printf "%s [command] --help" .CommandPath)}} {{muted "for more information."}}
{{end}}`

// initHelp groups the root commands and installs the styled help template
// on every command.
func initHelp(root *cobra.Command) {
	for name, fn := range helpTemplateFuncs {
		cobra.AddTemplateFunc(name, fn)
	}

	if !root.ContainsGroup(groupData) {
		root.AddGroup(
			&cobra.Group{ID: groupData, Title: "Data:"},
			&cobra.Group{ID: groupInsights, Title: "Insights:"},
		)
	}
	for _, c := range root.Commands() {
		switch c {
		case importCmd, exportCmd, statsCmd:
			c.GroupID = groupData
		case analyzeCmd, recommendCmd, feedbackCmd, similarCmd, clusterCmd:
			c.GroupID = groupInsights
		}
	}

	applyHelpTemplate(root)
}

func applyHelpTemplate(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
	for _, sub := range cmd.Commands() {
		applyHelpTemplate(sub)
	}
}
