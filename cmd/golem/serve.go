package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/golem"
	"github.com/aretw0/golem/internal/cli"
	httpadapter "github.com/aretw0/golem/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the bot behind an HTTP API: post events to /sessions/{id}/events and
follow the replies on /sessions/{id}/stream. Scheduled callbacks run in the same process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		// Replies reach browsers through the SSE streams of the web channel.
		streams := httpadapter.NewStreamManager(logger)
		source, _ := cmd.Flags().GetString("flows")
		app, err := cli.Build(sigCtx, cfg, logger, source, golem.WithChannels(httpadapter.NewChannel("web", streams)))
		if err != nil {
			return err
		}
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTP.Addr
		}
		srv := httpadapter.NewServer(app.Bot,
			httpadapter.WithStreams(streams),
			httpadapter.WithVersion(golem.Version),
			httpadapter.WithLogger(logger),
			httpadapter.WithMetrics(promhttp.HandlerFor(app.Metrics, promhttp.HandlerOpts{})),
		)

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(sigCtx)
		g.Go(func() error {
			app.Logger.Info("Starting golem server", "addr", addr, "flows", len(app.Flows.Flows()))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return app.RunScheduler(ctx)
		})
		g.Go(func() error {
			<-ctx.Done()
			app.Logger.Info("Start shutdown", "signal", sigCtx.Signal())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		app.Logger.Info("golem server stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from configuration, :8080)")
}
