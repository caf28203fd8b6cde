package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/askql/internal/api"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr  string
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Start an HTTP server exposing the query workflow.

Endpoints:
  GET  /healthz            liveness
  GET  /api/schema         schema description given to the model
  POST /api/query          {"question": "..."} -> result envelope
  POST /api/query/stream   server-sent events, one per workflow step

With --watch, changes to the schema file are picked up without a restart.`,
		Example: `  askql serve
  askql serve --addr 127.0.0.1:9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default from server.addr)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload the schema file when it changes")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctrl, err := cc.NewController(ctx)
	if err != nil {
		return err
	}

	addr := cc.Cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	srv := api.NewServer(api.Config{Addr: addr, Runner: ctrl, Logger: cc.Logger})

	watch := opts.Watch || cc.Cfg.Server.Watch
	if watch && cc.Cfg.Schema.Discover {
		cc.Logger.Warn("--watch has no effect with schema.discover")
		watch = false
	}
	if watch {
		go func() {
			err := api.WatchFile(ctx, cc.Cfg.Schema.File, cc.Logger, func() {
				reloadRunner(ctx, cc, srv)
			})
			if err != nil && ctx.Err() == nil {
				cc.Logger.Error("schema watch stopped", "error", err)
			}
		}()
	}

	cc.Renderer.Printf("askql listening on %s\n", addr)
	return srv.Serve(ctx)
}

// reloadRunner rebuilds the controller from the schema file. A schema that
// fails to load leaves the current runner in place.
func reloadRunner(ctx context.Context, cc *CommandContext, srv *api.Server) {
	ctrl, err := cc.NewController(ctx)
	if err != nil {
		cc.Logger.Error("schema reload failed", "file", cc.Cfg.Schema.File, "error", err)
		return
	}
	srv.SetRunner(ctrl)
	cc.Logger.Info("schema reloaded", "file", cc.Cfg.Schema.File)
}
