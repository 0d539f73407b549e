package commands

import (
	"context"
	"fmt"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/leapstack-labs/assetlineage/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Open bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lineage over HTTP for the graph webview",
		Long: `Start a local HTTP server exposing the configured snapshot.

Endpoints:
  GET /api/lineage             Programmatic payload (ETag = snapshot revision)
  GET /api/graph               Graph view (?focus= ?columns= ?expand=name:dir)
  GET /api/tree/{asset}        Dependency tree (?depth=)
  GET /api/impact/{node}       Upstream/downstream highlight (?focus= ?columns=)
  GET /api/check               Unresolved references and cycles
  GET /api/updates             Server-sent events with the current revision
  GET /metrics                 Prometheus metrics
  GET /healthz                 Liveness

Snapshots are cached. With --watch, a snapshot file is reloaded as soon as
it changes and subscribers of /api/updates are notified.`,
		Example: `  # Serve a snapshot file on the default port
  assetlineage serve --file pipeline.json

  # Serve the output of a parser command, re-running it every minute
  assetlineage serve --command "bruin internal parse-pipeline ." --cache-ttl 1m

  # Custom port, opening the browser
  assetlineage serve --port 3000 --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("host", "", "Host to bind (default: localhost)")
	cmd.Flags().Int("port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().Bool("watch", true, "Reload the snapshot file when it changes")
	cmd.Flags().Int("cache-size", 0, "Number of snapshots to keep (default: 16)")
	cmd.Flags().Duration("cache-ttl", 0, "Maximum snapshot age, e.g. 30s (0 = no expiry)")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the browser once the server starts")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	src, err := cmdCtx.Source()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Watch:     cfg.Server.Watch,
		Source:    src,
		CacheSize: cfg.Cache.Size,
		CacheTTL:  cfg.Cache.TTL,
		Logger:    cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.Open {
		url := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		go openBrowser(ctx, url)
	}

	cmdCtx.Renderer.Printf("Serving %s on http://%s:%d\n", src.Key(), cfg.Server.Host, cfg.Server.Port)
	cmdCtx.Renderer.Println("Press Ctrl+C to stop")

	return srv.Serve(ctx)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(ctx context.Context, url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}

	_ = cmd.Start()
}
