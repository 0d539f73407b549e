package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/spf13/cobra"
)

// TreeOptions holds options for the tree command.
type TreeOptions struct {
	Depth    int
	MaxNodes int
}

// NewTreeCommand creates the tree command.
func NewTreeCommand() *cobra.Command {
	opts := &TreeOptions{}

	cmd := &cobra.Command{
		Use:   "tree <asset>",
		Short: "Show the dependency tree of an asset",
		Long: `Expand an asset into its full dependency tree.

Upstreams are followed recursively, including references to assets of other
pipelines and URIs, which appear as leaves. Downstreams are followed the
same way. A branch stops where it would revisit an asset already on its path,
so cyclic pipelines produce a finite tree. Expansion also stops after
--max-nodes nodes, since dense graphs have very many paths.

The asset is matched by ID, or by name for assets without an ID.`,
		Example: `  # Full tree
  assetlineage tree 3f2a9c

  # Only two levels below the root
  assetlineage tree mart.revenue --depth 2

  # Output as JSON
  assetlineage tree mart.revenue -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max expansion depth (0 = unlimited)")
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", lineage.DefaultMaxNodes, "Max number of nodes in the tree")

	return cmd
}

func runTree(cmd *cobra.Command, assetID string, opts *TreeOptions) error {
	if opts.Depth < 0 {
		return fmt.Errorf("--depth must not be negative, got %d", opts.Depth)
	}
	if opts.MaxNodes < 1 {
		return fmt.Errorf("--max-nodes must be positive, got %d", opts.MaxNodes)
	}

	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	l, err := cmdCtx.LoadLineage(cmd.Context())
	if err != nil {
		return err
	}

	tree := lineage.BuildTreeWithOptions(assetID, l.Assets, lineage.TreeOptions{
		MaxDepth: opts.Depth,
		MaxNodes: opts.MaxNodes,
	})
	if tree == nil {
		return fmt.Errorf("%w: %s", lineage.ErrAssetNotFound, assetID)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(tree)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Dependency Tree: "+tree.Name))
		r.Println("")
		r.Println("```")
		r.Print(formatTree(tree))
		r.Println("```")
		if tree.Truncated {
			r.Println("")
			r.Println(truncatedNote(opts.MaxNodes))
		}
		return nil
	default:
		r.Header(1, "Dependency Tree: "+tree.Name)
		r.Print(formatTree(tree))
		if tree.Truncated {
			r.Warning(truncatedNote(opts.MaxNodes))
		}
		return nil
	}
}

func truncatedNote(maxNodes int) string {
	return fmt.Sprintf("Tree truncated at %d nodes; raise --max-nodes or set --depth.", maxNodes)
}

// formatTree draws the tree with box characters. Upstream children are
// marked ↑ and downstream children ↓.
func formatTree(t *lineage.Tree) string {
	var sb strings.Builder
	sb.WriteString(t.Name)
	sb.WriteString("\n")
	writeTreeChildren(&sb, t, "")
	return sb.String()
}

func writeTreeChildren(sb *strings.Builder, t *lineage.Tree, prefix string) {
	type child struct {
		node  *lineage.Tree
		arrow string
	}
	children := make([]child, 0, len(t.Upstreams)+len(t.Downstream))
	for _, u := range t.Upstreams {
		children = append(children, child{u, "↑"})
	}
	for _, d := range t.Downstream {
		children = append(children, child{d, "↓"})
	}

	for i, c := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}
		fmt.Fprintf(sb, "%s%s%s %s\n", prefix, branch, c.arrow, c.node.Name)
		writeTreeChildren(sb, c.node, prefix+indent)
	}
}
