package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/relite/internal/hub"
	"github.com/aretw0/relite/pkg/domain"
)

// Overlay marks the entry an instance currently sits on.
type Overlay struct {
	CurrentID int
}

// GenerateMermaid produces a Mermaid flowchart of an instance history.
// Shapes:
// - Init: ((Circle))
// - DevTool originated action: [[Subroutine]]
// - Default: [Rectangle]
// Entries before the overlay's current id are styled as visited.
func GenerateMermaid(entries []hub.Entry, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	prev := ""
	for _, e := range entries {
		id := nodeID(e.ID)
		label := "@@INIT"
		if e.Action != nil {
			label = e.Action.Type
		}

		opener, closer := "[", "]"
		switch {
		case e.Kind == domain.KindInit:
			opener, closer = "((", "))"
		case domain.IsDevToolAction(label):
			opener, closer = "[[", "]]"
		}

		fmt.Fprintf(&sb, "    %s%s\"#%d %s\"%s\n", id, opener, e.ID, escape(label), closer)
		if prev != "" {
			arrow := "-->"
			if e.Kind == domain.KindInit {
				// re-init after a reset or import breaks the chain
				arrow = "-.->"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", prev, arrow, id)
		}
		prev = id
	}

	if overlay != nil && len(entries) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, e := range entries {
			switch {
			case e.ID == overlay.CurrentID:
				fmt.Fprintf(&sb, "    class %s current;\n", nodeID(e.ID))
			case e.ID < overlay.CurrentID:
				fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(e.ID))
			}
		}
	}

	return sb.String()
}

func nodeID(id int) string {
	return fmt.Sprintf("e%d", id)
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}
