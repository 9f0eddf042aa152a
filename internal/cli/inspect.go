package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/relite/internal/hub"
	"github.com/aretw0/relite/internal/presentation/graph"
	"github.com/aretw0/relite/internal/presentation/tui"
)

// Output formats of the inspection commands.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatMermaid  = "mermaid"
)

// InspectOptions selects the hub to query and how results are printed.
type InspectOptions struct {
	Client *hub.Client
	Out    io.Writer
	Format string
	// Plain skips terminal styling of markdown output.
	Plain bool
}

// RunInstances prints the instances known to the hub.
func RunInstances(ctx context.Context, opts InspectOptions) error {
	instances, err := opts.Client.Instances(ctx)
	if err != nil {
		return err
	}

	switch opts.Format {
	case FormatJSON:
		return writeJSON(opts.Out, instances)
	case "", FormatMarkdown:
		return render(opts, tui.InstancesMarkdown(instances))
	default:
		return fmt.Errorf("format %q is not supported for instances", opts.Format)
	}
}

// RunHistory prints the recorded history of one instance.
func RunHistory(ctx context.Context, opts InspectOptions, id string) error {
	entries, err := opts.Client.History(ctx, id)
	if err != nil {
		return err
	}

	switch opts.Format {
	case FormatJSON:
		return writeJSON(opts.Out, entries)
	case FormatMermaid:
		var overlay *graph.Overlay
		if n := len(entries); n > 0 {
			overlay = &graph.Overlay{CurrentID: entries[n-1].ID}
		}
		_, err := io.WriteString(opts.Out, graph.GenerateMermaid(entries, overlay))
		return err
	case "", FormatMarkdown:
		info, err := findInstance(ctx, opts.Client, id)
		if err != nil {
			return err
		}
		return render(opts, tui.HistoryMarkdown(info, entries))
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}

// RunJump moves an instance back to the state recorded after actionID.
func RunJump(ctx context.Context, opts InspectOptions, id string, actionID int) error {
	if err := opts.Client.Jump(ctx, id, actionID); err != nil {
		return err
	}
	printSystemMessage(opts.Out, "Instance %s jumped to action #%d.", id, actionID)
	return nil
}

func findInstance(ctx context.Context, client *hub.Client, id string) (hub.InstanceInfo, error) {
	instances, err := client.Instances(ctx)
	if err != nil {
		return hub.InstanceInfo{}, err
	}
	for _, inst := range instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return hub.InstanceInfo{ID: id}, nil
}

func render(opts InspectOptions, markdown string) error {
	out, err := tui.NewRenderer(opts.Plain)(markdown)
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	_, err = io.WriteString(opts.Out, out)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
