package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/leapstack-labs/assetlineage/internal/source"
	"github.com/spf13/cobra"
)

// ErrCheckFailed is returned by check --strict when problems were found.
var ErrCheckFailed = errors.New("lineage check failed")

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Strict bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check [snapshot|project-dir]...",
		Short: "Report unresolved references and cycles",
		Long: `Check a snapshot for asset references that match no asset and for
dependency cycles.

Unresolved references are normal for assets of other pipelines and cycles do
not break any view, so both are reported as warnings. With --strict the
command fails when any are found, for use in CI.

Without arguments the configured snapshot is checked. Arguments may be
snapshot files or project directories holding an assetlineage.yaml; they are
loaded concurrently and reported one after another.`,
		Example: `  # Report problems
  assetlineage check

  # Fail on problems
  assetlineage check --strict

  # Check several projects at once
  assetlineage check ./ingest ./warehouse snapshots/marketing.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit with an error when problems are found")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string, opts *CheckOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	reports, err := loadReports(cmd.Context(), cmdCtx, args)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		var payload any = reports
		if len(args) == 0 {
			payload = reports[0]
		}
		if err := r.JSON(payload); err != nil {
			return err
		}
	case output.ModeMarkdown:
		for _, report := range reports {
			checkMarkdown(r, report)
		}
	default:
		for _, report := range reports {
			checkText(r, report)
		}
	}

	problems := 0
	for _, report := range reports {
		problems += len(report.Unresolved)
		if len(report.Cycle) > 0 {
			problems++
		}
	}
	if opts.Strict && problems > 0 {
		return fmt.Errorf("%w: %d problem(s)", ErrCheckFailed, problems)
	}
	return nil
}

// loadReports checks the configured snapshot, or every argument when there
// are any. An argument is a snapshot file or a project directory.
func loadReports(ctx context.Context, cmdCtx *CommandContext, args []string) ([]lineage.Report, error) {
	if len(args) == 0 {
		l, err := cmdCtx.LoadLineage(ctx)
		if err != nil {
			return nil, err
		}
		return []lineage.Report{l.Check()}, nil
	}

	sources := make([]source.Source, 0, len(args))
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", arg, err)
		}
		if !info.IsDir() {
			sources = append(sources, source.NewFileSource(arg))
			continue
		}
		src, err := cmdCtx.ProjectSource(arg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	raws, err := source.LoadAll(ctx, sources, cmdCtx.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	reports := make([]lineage.Report, 0, len(raws))
	for _, raw := range raws {
		reports = append(reports, lineage.Build(raw).Check())
	}
	return reports, nil
}

func checkTitle(report lineage.Report) string {
	if report.Pipeline == "" {
		return "Lineage Check"
	}
	return "Lineage Check: " + report.Pipeline
}

func checkText(r *output.Renderer, report lineage.Report) {
	styles := r.Styles()

	r.Header(1, checkTitle(report))

	if len(report.Unresolved) == 0 && len(report.Cycle) == 0 {
		r.Success(fmt.Sprintf("%d assets, no problems found", report.Assets))
		return
	}

	if len(report.Unresolved) > 0 {
		r.Println(styles.Header2.Render(fmt.Sprintf("Unresolved references (%d):", len(report.Unresolved))))
		for _, u := range report.Unresolved {
			r.Printf("  %s %s %s\n", styles.AssetName.Render(u.Asset), styles.Muted.Render("→"), u.Upstream)
		}
		r.Println("")
	}

	if len(report.Cycle) > 0 {
		r.Println(styles.Header2.Render("Cycle:"))
		r.Printf("  %s %s\n", styles.StatusFailed, strings.Join(report.Cycle, " → "))
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Checked %d assets", report.Assets)))
}

func checkMarkdown(r *output.Renderer, report lineage.Report) {
	r.Println(output.FormatHeader(1, checkTitle(report)))
	r.Println("")

	unresolved := make([]string, 0, len(report.Unresolved))
	for _, u := range report.Unresolved {
		unresolved = append(unresolved, fmt.Sprintf("%s → %s", u.Asset, u.Upstream))
	}
	r.Println(output.FormatHeader(2, "Unresolved References"))
	r.Println(output.FormatList(unresolved))
	r.Println("")

	r.Println(output.FormatHeader(2, "Cycle"))
	if len(report.Cycle) > 0 {
		r.Println("- " + strings.Join(report.Cycle, " → "))
	} else {
		r.Println(output.FormatList(nil))
	}
	r.Println("")

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Assets", fmt.Sprintf("%d", report.Assets)))
	r.Println(output.FormatKeyValue("Roots", strings.Join(report.Roots, ", ")))
	r.Println(output.FormatKeyValue("Leaves", strings.Join(report.Leaves, ", ")))
	r.Println(output.FormatKeyValue("Unresolved", fmt.Sprintf("%d", len(report.Unresolved))))
	r.Println("")
}
