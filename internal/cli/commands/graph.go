package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/leapstack-labs/assetlineage/pkg/core"
	"github.com/spf13/cobra"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	Columns bool
	Expand  []string
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph [asset]",
		Short: "Show the lineage graph",
		Long: `Show the renderable lineage graph of a snapshot.

With an asset (name or ID), only the focus view is shown: the asset and its
direct upstreams and downstreams. Nodes marked as expandable have neighbors
that are not shown yet; --expand materializes them.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Whole pipeline
  assetlineage graph

  # Focus view with column lineage edges
  assetlineage graph mart.revenue --columns

  # Grow the focus view upstream of one neighbor
  assetlineage graph mart.revenue --expand stg.orders:upstream

  # Output as JSON for the webview
  assetlineage graph mart.revenue -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			focus := ""
			if len(args) > 0 {
				focus = args[0]
			}
			return runGraph(cmd, focus, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Columns, "columns", false, "Include column lineage edges")
	cmd.Flags().StringSliceVar(&opts.Expand, "expand", nil, "Expand a node's neighbors: name[:upstream|downstream|both] (repeatable)")

	return cmd
}

func runGraph(cmd *cobra.Command, focus string, opts *GraphOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	l, err := cmdCtx.LoadLineage(cmd.Context())
	if err != nil {
		return err
	}

	view, title, err := buildGraphView(l, focus, opts)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(view)
	case output.ModeMarkdown:
		return graphMarkdown(r, title, view)
	default:
		return graphText(r, title, view)
	}
}

// buildGraphView applies focus, expansions and column edges in that order,
// so column edges cover the final node set.
func buildGraphView(l *lineage.Lineage, focus string, opts *GraphOptions) (*lineage.View, string, error) {
	var view *lineage.View
	title := l.Pipeline
	if focus == "" {
		view = lineage.Full(l)
	} else {
		a, err := l.Resolve(focus)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s", err, focus)
		}
		view = lineage.Project(l, a.Name)
		title = a.Name
	}

	for _, spec := range opts.Expand {
		name, dir, err := lineage.ParseExpand(spec)
		if err != nil {
			return nil, "", err
		}
		view = lineage.Expand(view, l, name, dir)
	}

	if opts.Columns {
		view = view.WithColumnEdges(l)
	}
	if title == "" {
		title = "pipeline"
	}
	return view, title, nil
}

// nodeMarkers describes the render flags of a node.
func nodeMarkers(n core.GraphNode) []string {
	var markers []string
	if n.Data.IsFocusAsset {
		markers = append(markers, "focus")
	}
	if n.Data.HasUpstreamForClicking {
		markers = append(markers, "more upstream")
	}
	if n.Data.HasDownstreamForClicking {
		markers = append(markers, "more downstream")
	}
	return markers
}

func edgeLabel(e core.GraphEdge) string {
	if e.Data.Type == core.EdgeTypeColumnLineage {
		return fmt.Sprintf("%s.%s → %s.%s", e.Data.SourceAsset, e.Data.SourceColumn, e.Data.TargetAsset, e.Data.TargetColumn)
	}
	return fmt.Sprintf("%s → %s", e.Source, e.Target)
}

func splitEdges(edges []core.GraphEdge) (assetEdges, columnEdges []core.GraphEdge) {
	for _, e := range edges {
		if e.Data.Type == core.EdgeTypeColumnLineage {
			columnEdges = append(columnEdges, e)
		} else {
			assetEdges = append(assetEdges, e)
		}
	}
	return assetEdges, columnEdges
}

// graphText outputs the graph in styled text format.
func graphText(r *output.Renderer, title string, view *lineage.View) error {
	styles := r.Styles()
	assetEdges, columnEdges := splitEdges(view.Edges)

	r.Header(1, "Lineage Graph: "+title)

	r.Println(styles.Header2.Render("Assets:"))
	for _, n := range view.Nodes {
		name := styles.AssetName.Render(n.ID)
		if n.Data.IsFocusAsset {
			name = styles.Focus.Render(n.ID)
		}
		line := "  " + name
		if markers := nodeMarkers(n); len(markers) > 0 {
			line += " " + styles.Muted.Render("("+strings.Join(markers, ", ")+")")
		}
		r.Println(line)
	}
	r.Println("")

	if len(assetEdges) > 0 {
		r.Println(styles.Header2.Render("Dependencies:"))
		for _, e := range assetEdges {
			r.Printf("  %s\n", edgeLabel(e))
		}
		r.Println("")
	}

	if len(columnEdges) > 0 {
		r.Println(styles.Header2.Render("Column lineage:"))
		for _, e := range columnEdges {
			r.Printf("  %s\n", edgeLabel(e))
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d assets, %d asset edges, %d column edges",
		len(view.Nodes), len(assetEdges), len(columnEdges))))
	return nil
}

// graphMarkdown outputs the graph in markdown format.
func graphMarkdown(r *output.Renderer, title string, view *lineage.View) error {
	assetEdges, columnEdges := splitEdges(view.Edges)

	r.Println(output.FormatHeader(1, "Lineage Graph: "+title))
	r.Println("")

	r.Println(output.FormatHeader(2, "Assets"))
	items := make([]string, 0, len(view.Nodes))
	for _, n := range view.Nodes {
		item := n.ID
		if markers := nodeMarkers(n); len(markers) > 0 {
			item += " (" + strings.Join(markers, ", ") + ")"
		}
		items = append(items, item)
	}
	r.Println(output.FormatList(items))
	r.Println("")

	r.Println(output.FormatHeader(2, "Dependencies"))
	r.Println(output.FormatList(edgeLabels(assetEdges)))
	r.Println("")

	if len(columnEdges) > 0 {
		r.Println(output.FormatHeader(2, "Column Lineage"))
		r.Println(output.FormatList(edgeLabels(columnEdges)))
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Assets", fmt.Sprintf("%d", len(view.Nodes))))
	r.Println(output.FormatKeyValue("Asset Edges", fmt.Sprintf("%d", len(assetEdges))))
	r.Println(output.FormatKeyValue("Column Edges", fmt.Sprintf("%d", len(columnEdges))))
	return nil
}

func edgeLabels(edges []core.GraphEdge) []string {
	labels := make([]string, 0, len(edges))
	for _, e := range edges {
		labels = append(labels, edgeLabel(e))
	}
	return labels
}
