package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	"github.com/leapstack-labs/assetlineage/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewAssetsCommand creates the assets command.
func NewAssetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List the assets of a snapshot",
		Long: `List every asset with its type, definition path and how many direct
upstreams and downstreams it has. Downstreams are derived from the upstreams
of the other assets.

The JSON output is the name-level asset list: declared upstream values and
derived downstream names for each asset.`,
		Example: `  # List assets
  assetlineage assets

  # Name-level asset list as JSON
  assetlineage assets -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAssets(cmd)
		},
	}
}

func runAssets(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	raw, err := cmdCtx.LoadSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	normalized := pipeline.Normalize(raw)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(normalized)
	}

	rows := make([][]string, 0, len(normalized.Assets))
	for _, a := range normalized.Assets {
		rows = append(rows, []string{
			a.Name,
			a.Type,
			strconv.Itoa(len(a.Upstreams)),
			strconv.Itoa(len(a.Downstream)),
			a.Path,
		})
	}

	title := "Assets"
	if raw != nil && raw.Name != "" {
		title = fmt.Sprintf("Assets: %s", raw.Name)
	}
	r.Header(1, title)
	if len(rows) == 0 {
		r.Println("No assets found.")
		return nil
	}
	r.Table([]string{"Name", "Type", "Upstreams", "Downstreams", "Path"}, rows)
	return nil
}
