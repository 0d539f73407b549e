package commands

import (
	"fmt"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/spf13/cobra"
)

// DepsOptions holds options for the deps command.
type DepsOptions struct {
	Direction string
}

// DepsResult is the JSON payload of the deps command. A direction that was
// not requested is omitted.
type DepsResult struct {
	Asset      string   `json:"asset"`
	Upstream   []string `json:"upstream,omitempty"`
	Downstream []string `json:"downstream,omitempty"`
}

// NewDepsCommand creates the deps command.
func NewDepsCommand() *cobra.Command {
	opts := &DepsOptions{}

	cmd := &cobra.Command{
		Use:   "deps <asset>",
		Short: "List transitive dependencies and dependents",
		Long: `List every asset an asset transitively depends on and every asset that
transitively depends on it.

Only asset references resolved within the snapshot are followed; URIs and
assets of other pipelines are not part of the closure. Results are sorted.`,
		Example: `  # Both directions
  assetlineage deps stg.orders

  # Only what breaks if stg.orders changes
  assetlineage deps stg.orders --direction downstream -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Direction, "direction", "both", "Closure to list: upstream, downstream or both")
	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"upstream", "downstream", "both"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runDeps(cmd *cobra.Command, asset string, opts *DepsOptions) error {
	dir, err := lineage.ParseDirection(opts.Direction)
	if err != nil {
		return err
	}

	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	l, err := cmdCtx.LoadLineage(cmd.Context())
	if err != nil {
		return err
	}
	a, err := l.Resolve(asset)
	if err != nil {
		return fmt.Errorf("%w: %s", err, asset)
	}

	result := DepsResult{Asset: a.Name}
	if dir != lineage.DirectionDownstream {
		if result.Upstream, err = l.DependenciesOf(a.Name); err != nil {
			return err
		}
	}
	if dir != lineage.DirectionUpstream {
		if result.Downstream, err = l.DependentsOf(a.Name); err != nil {
			return err
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Dependencies: "+result.Asset))
		r.Println("")
		if dir != lineage.DirectionDownstream {
			r.Println(output.FormatHeader(2, "Upstream"))
			r.Println(output.FormatList(result.Upstream))
			r.Println("")
		}
		if dir != lineage.DirectionUpstream {
			r.Println(output.FormatHeader(2, "Downstream"))
			r.Println(output.FormatList(result.Downstream))
			r.Println("")
		}
		return nil
	default:
		styles := r.Styles()
		r.Header(1, "Dependencies: "+result.Asset)
		if dir != lineage.DirectionDownstream {
			r.Println(styles.Header2.Render(fmt.Sprintf("Upstream (%d):", len(result.Upstream))))
			for _, name := range result.Upstream {
				r.Printf("  %s\n", styles.AssetName.Render(name))
			}
			r.Println("")
		}
		if dir != lineage.DirectionUpstream {
			r.Println(styles.Header2.Render(fmt.Sprintf("Downstream (%d):", len(result.Downstream))))
			for _, name := range result.Downstream {
				r.Printf("  %s\n", styles.AssetName.Render(name))
			}
		}
		return nil
	}
}
