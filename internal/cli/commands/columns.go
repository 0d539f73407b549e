package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	"github.com/leapstack-labs/assetlineage/pkg/core"
	"github.com/spf13/cobra"
)

// NewColumnsCommand creates the columns command.
func NewColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns [asset]",
		Short: "Show column-level lineage",
		Long: `Show which source columns feed each column.

The lineage is taken from the snapshot's column_lineage section, or derived
from the upstreams declared on each column when that section is absent.
With an asset, only the columns of that asset are shown.`,
		Example: `  # All column lineage
  assetlineage columns

  # Columns of one asset
  assetlineage columns mart.revenue -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset := ""
			if len(args) > 0 {
				asset = args[0]
			}
			return runColumns(cmd, asset)
		},
	}
}

func runColumns(cmd *cobra.Command, asset string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	l, err := cmdCtx.LoadLineage(cmd.Context())
	if err != nil {
		return err
	}

	entries := l.ColumnLineage
	if asset != "" {
		a, err := l.Resolve(asset)
		if err != nil {
			return fmt.Errorf("%w: %s", err, asset)
		}
		entries = core.ColumnLineageMap{}
		if cols, ok := l.ColumnLineage[a.Name]; ok {
			entries[a.Name] = cols
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}

	targets := make([]string, 0, len(entries))
	for name := range entries {
		targets = append(targets, name)
	}
	sort.Strings(targets)

	var rows [][]string
	for _, target := range targets {
		for _, entry := range entries[target] {
			sources := make([]string, 0, len(entry.SourceColumns))
			for _, src := range entry.SourceColumns {
				sources = append(sources, src.Asset+"."+src.Column)
			}
			rows = append(rows, []string{target, entry.Column, strings.Join(sources, ", ")})
		}
	}

	r.Header(1, "Column Lineage")
	if len(rows) == 0 {
		r.Println("No column lineage found.")
		return nil
	}
	r.Table([]string{"Asset", "Column", "Sources"}, rows)
	return nil
}
