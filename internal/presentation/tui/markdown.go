package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/relite/internal/hub"
)

// InstancesMarkdown renders the instance list as a markdown table.
func InstancesMarkdown(instances []hub.InstanceInfo) string {
	if len(instances) == 0 {
		return "_No instances connected._\n"
	}

	var sb strings.Builder
	sb.WriteString("| ID | Name | Connected | Entries | Actions |\n")
	sb.WriteString("|----|------|-----------|---------|---------|\n")
	for _, inst := range instances {
		status := "yes"
		if !inst.Connected {
			status = "no"
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %d | %s |\n",
			inst.ID, cell(inst.Name), status, inst.Entries, cell(strings.Join(inst.Actions, ", ")))
	}
	return sb.String()
}

// HistoryMarkdown renders the recorded entries of one instance.
func HistoryMarkdown(inst hub.InstanceInfo, entries []hub.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", cell(inst.Name))
	fmt.Fprintf(&sb, "Instance `%s`, %d entries.\n\n", inst.ID, len(entries))

	if len(entries) == 0 {
		sb.WriteString("_No history recorded._\n")
		return sb.String()
	}

	sb.WriteString("| # | Action | Time | State |\n")
	sb.WriteString("|---|--------|------|-------|\n")
	for _, e := range entries {
		action := "@@INIT"
		if e.Action != nil {
			action = e.Action.Type
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | `%s` |\n",
			e.ID, cell(action), e.Time.Format("15:04:05.000"), cell(truncate(string(e.State), 60)))
	}
	return sb.String()
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
