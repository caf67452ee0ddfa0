package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/slipwayci/slipway/internal/domain"
	"github.com/slipwayci/slipway/internal/engine"
	"github.com/slipwayci/slipway/internal/pipeline"
	"github.com/slipwayci/slipway/internal/server"
	"github.com/slipwayci/slipway/internal/signal"
)

// AddServeCommand adds the serve command to the parent command.
func AddServeCommand(parent *cobra.Command) {
	var pipelineFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook listener",
		Long: `Serve starts an HTTP listener that converts incoming repository
events (push, pull_request) into pipeline runs. The pipeline definition
is loaded once at startup. SIGINT or SIGTERM triggers a graceful
shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			handler := signal.NewHandler(cmd.Context())
			defer handler.Stop()
			ctx := logger.WithContext(handler.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			p, err := pipeline.Load(pipelineFile)
			if err != nil {
				return err
			}

			opts := server.Options{
				Addr:            app.cfg.Server.Addr,
				ShutdownTimeout: app.cfg.Server.ShutdownTimeout,
			}
			if ref := app.cfg.Server.WebhookSecretRef; ref != "" {
				record, err := app.secrets.Resolve(ctx, ref, "")
				if err != nil {
					return err
				}
				opts.WebhookSecret = []byte(record.Value.Plaintext())
			} else {
				logger.Warn().Msg("webhook signature verification disabled, set server.webhook_secret_ref")
			}

			dispatcher := &pipelineDispatcher{engine: app.newEngine(), pipeline: p}
			srv := server.New(dispatcher, app.runs, opts, logger)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "pipeline", "p", DefaultPipelineFile, "pipeline definition file")

	parent.AddCommand(cmd)
}

// pipelineDispatcher adapts the engine to the server's Dispatcher
// interface by binding it to the pipeline loaded at startup.
type pipelineDispatcher struct {
	engine   *engine.Engine
	pipeline *domain.Pipeline
}

// Dispatch executes the bound pipeline for the event.
func (d *pipelineDispatcher) Dispatch(ctx context.Context, event domain.TriggerEvent) (*domain.RunRecord, error) {
	return d.engine.Execute(ctx, d.pipeline, event)
}
