package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// AddDeployCommand adds the deploy command to the parent command.
func AddDeployCommand(parent *cobra.Command) {
	var (
		runID      string
		targetName string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a run's artifact to a target",
		Long: `Deploy ships the artifact published by a run to a configured target:
the artifact is copied into a fresh release directory, activated with an
atomic symlink swap, the application process is restarted (or started if
the supervisor does not know it), and liveness is verified.

Failed deployments are never retried automatically; dispatch again after
fixing the cause.`,
		Example: `  slipway deploy --run run-20260829-101500 --target production`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			target := app.cfg.Deploy.Target(targetName)
			if target == nil {
				return fmt.Errorf("target %q: %w", targetName, slipwayerrors.ErrTargetNotFound)
			}

			req, err := app.newAgent().Deploy(ctx, runID, *target)
			if err != nil {
				if req != nil {
					cmd.Printf("Deployment %s: %s\n", req.ID, req.Status)
				}
				return err
			}

			cmd.Printf("Deployment %s: %s\n", req.ID, req.Status)
			cmd.Printf("  run:      %s\n", req.RunID)
			cmd.Printf("  target:   %s\n", req.Target)
			cmd.Printf("  artifact: %s (%s)\n", req.Artifact.Name, req.Artifact.Digest)
			cmd.Printf("  release:  %s\n", req.Release)
			return nil
		},
	}

	cmd.Flags().StringVarP(&runID, "run", "r", "", "run whose artifact to deploy")
	cmd.Flags().StringVarP(&targetName, "target", "t", "", "configured deployment target name")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("target")

	parent.AddCommand(cmd)
}

// AddDeploymentsCommand adds the deployments listing command.
func AddDeploymentsCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "List deployment requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			requests, err := app.deployments.List(ctx)
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				cmd.Println("No deployments found.")
				return nil
			}

			cmd.Printf("%-36s %-24s %-14s %-12s %-20s\n", "ID", "RUN", "TARGET", "STATUS", "CREATED")
			for _, req := range requests {
				cmd.Printf("%-36s %-24s %-14s %-12s %-20s\n",
					req.ID,
					req.RunID,
					req.Target,
					req.Status,
					req.CreatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return nil
		},
	}

	parent.AddCommand(cmd)
}
