// Package formatting renders management API data as terminal tables.
package formatting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"menagerie/internal/api"
	pkgstrings "menagerie/pkg/strings"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

// stateColor maps lifecycle states to a terminal color.
func stateColor(state api.InstanceState) text.Color {
	switch state {
	case api.StateRunning:
		return text.FgGreen
	case api.StateError:
		return text.FgRed
	case api.StateStarting, api.StateStopping:
		return text.FgYellow
	default:
		return text.FgWhite
	}
}

// RenderInstances prints the instance table.
func RenderInstances(out io.Writer, instances []api.InstanceStatus) {
	if len(instances) == 0 {
		fmt.Fprintln(out, text.FgYellow.Sprint("No instances configured"))
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "NAME", "TEMPLATE", "STATE", "AUTO", "HEARTBEAT", "LAST ERROR"})
	for _, inst := range instances {
		heartbeat := "-"
		if inst.LastHeartbeat != nil {
			heartbeat = fmt.Sprintf("%ds ago", int(time.Since(*inst.LastHeartbeat).Seconds()))
		}
		auto := ""
		if inst.AutoStart {
			auto = "yes"
		}
		t.AppendRow(table.Row{
			inst.ID,
			inst.Name,
			inst.Template,
			stateColor(inst.State).Sprint(inst.State),
			auto,
			heartbeat,
			pkgstrings.Truncate(inst.LastError, 40),
		})
	}
	t.Render()
}

// RenderTemplates prints the template table.
func RenderTemplates(out io.Writer, templates []api.TemplateInfo) {
	if len(templates) == 0 {
		fmt.Fprintln(out, text.FgYellow.Sprint("No templates defined"))
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "NAME", "PERSONALITY", "EMBEDDER", "DESCRIPTION"})
	for _, tmpl := range templates {
		personality := tmpl.Personality
		if personality == "" {
			personality = "adaptive"
		}
		embedder := ""
		if tmpl.LoadEmbedder {
			embedder = "yes"
		}
		t.AppendRow(table.Row{tmpl.ID, tmpl.Name, personality, embedder, pkgstrings.Truncate(tmpl.Description, 50)})
	}
	t.Render()
}

// RenderCredentials prints the credential table. Only redacted displays ever
// reach this layer.
func RenderCredentials(out io.Writer, creds []api.CredentialInfo) {
	if len(creds) == 0 {
		fmt.Fprintln(out, text.FgYellow.Sprint("No credentials stored"))
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "NAME", "TOKEN", "ACTIVE", "ADDED"})
	for _, cred := range creds {
		active := text.FgGreen.Sprint("yes")
		if !cred.Active {
			active = text.FgRed.Sprint("no")
		}
		t.AppendRow(table.Row{cred.ID, cred.Name, cred.Display, active,
			cred.AddedAt.Format("2006-01-02 15:04")})
	}
	t.Render()
}

// RenderStats prints the system stats summary.
func RenderStats(out io.Writer, stats *api.SystemStats) {
	t := newTable(out)
	t.AppendHeader(table.Row{"KEY", "VALUE"})
	t.AppendRow(table.Row{"uptime", stats.Uptime.Round(time.Second)})
	t.AppendRow(table.Row{"instances", stats.InstanceCount})
	for _, state := range []api.InstanceState{api.StateRunning, api.StateStarting,
		api.StateStopping, api.StateStopped, api.StateError} {
		if n := stats.StateCounts[state]; n > 0 {
			t.AppendRow(table.Row{string(state), n})
		}
	}
	t.Render()
}

