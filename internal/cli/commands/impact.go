package commands

import (
	"fmt"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	"github.com/leapstack-labs/assetlineage/internal/impact"
	"github.com/spf13/cobra"
)

// ImpactOptions holds options for the impact command.
type ImpactOptions struct {
	Focus   string
	Columns bool
}

// NewImpactCommand creates the impact command.
func NewImpactCommand() *cobra.Command {
	opts := &ImpactOptions{}

	cmd := &cobra.Command{
		Use:   "impact <asset>",
		Short: "Show what an asset depends on and what it affects",
		Long: `Walk the graph edges from an asset in both directions.

Upstream lists every node the asset transitively depends on, downstream
every node that transitively depends on it; both include the asset itself.
Nodes in neither set are reported as unaffected.

By default the whole pipeline is analyzed. With --focus, only the focus
view of that asset is, which is what a graph view shows before expansion.`,
		Example: `  # Impact across the pipeline
  assetlineage impact stg.orders

  # Impact within the focus view of another asset
  assetlineage impact stg.orders --focus mart.revenue

  # Output as JSON
  assetlineage impact stg.orders -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Focus, "focus", "", "Analyze within the focus view of this asset")
	cmd.Flags().BoolVar(&opts.Columns, "columns", false, "Follow column lineage edges too")

	return cmd
}

func runImpact(cmd *cobra.Command, node string, opts *ImpactOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	l, err := cmdCtx.LoadLineage(cmd.Context())
	if err != nil {
		return err
	}

	view, _, err := buildGraphView(l, opts.Focus, &GraphOptions{Columns: opts.Columns})
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(view.Nodes))
	found := false
	for _, n := range view.Nodes {
		ids = append(ids, n.ID)
		found = found || n.ID == node
	}
	if !found {
		return fmt.Errorf("asset %q is not in the analyzed view", node)
	}

	hl := impact.Analyze(node, ids, view.Edges)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(hl)
	case output.ModeMarkdown:
		return impactMarkdown(r, hl)
	default:
		return impactText(r, hl)
	}
}

// impactText outputs the highlight in styled text format.
func impactText(r *output.Renderer, hl impact.Highlight) error {
	styles := r.Styles()

	r.Header(1, "Impact: "+hl.Seed)

	sections := []struct {
		title string
		nodes []string
	}{
		{"Upstream", hl.Upstream},
		{"Downstream", hl.Downstream},
		{"Unaffected", hl.Faded},
	}
	for _, sec := range sections {
		r.Println(styles.Header2.Render(fmt.Sprintf("%s (%d):", sec.title, len(sec.nodes))))
		for _, n := range sec.nodes {
			if n == hl.Seed {
				r.Printf("  %s\n", styles.Focus.Render(n))
				continue
			}
			r.Printf("  %s\n", styles.AssetName.Render(n))
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("%d connected, %d edges walked", len(hl.Connected), len(hl.Edges))))
	return nil
}

// impactMarkdown outputs the highlight in markdown format.
func impactMarkdown(r *output.Renderer, hl impact.Highlight) error {
	r.Println(output.FormatHeader(1, "Impact: "+hl.Seed))
	r.Println("")

	r.Println(output.FormatHeader(2, "Upstream"))
	r.Println(output.FormatList(hl.Upstream))
	r.Println("")

	r.Println(output.FormatHeader(2, "Downstream"))
	r.Println(output.FormatList(hl.Downstream))
	r.Println("")

	r.Println(output.FormatHeader(2, "Unaffected"))
	r.Println(output.FormatList(hl.Faded))
	r.Println("")

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Connected", fmt.Sprintf("%d", len(hl.Connected))))
	r.Println(output.FormatKeyValue("Edges Walked", fmt.Sprintf("%d", len(hl.Edges))))
	return nil
}
