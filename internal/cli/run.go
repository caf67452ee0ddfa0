package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/pipeline"
)

// DefaultPipelineFile is the conventional pipeline definition location.
const DefaultPipelineFile = ".slipway/pipeline.yaml"

// AddRunCommand adds the run command to the parent command.
func AddRunCommand(parent *cobra.Command) {
	var (
		pipelineFile string
		eventKind    string
		branch       string
		commitSHA    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline manually",
		Long: `Run dispatches a manual trigger event against a pipeline definition
and executes the jobs it activates. The run blocks until every job
reaches a terminal state and exits non-zero if the run failed.`,
		Example: `  slipway run
  slipway run --pipeline ci.yaml --branch release --event push`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			p, err := pipeline.Load(pipelineFile)
			if err != nil {
				return err
			}

			kind, err := parseTriggerKind(eventKind)
			if err != nil {
				return err
			}

			event := domain.TriggerEvent{
				Kind:       kind,
				Branch:     branch,
				CommitSHA:  commitSHA,
				ReceivedAt: time.Now().UTC(),
			}

			record, err := app.newEngine().Execute(ctx, p, event)
			if err != nil && !errors.Is(err, slipwayerrors.ErrJobFailed) {
				if errors.Is(err, slipwayerrors.ErrNoJobsMatched) {
					logger.Warn().
						Str("pipeline", p.Name).
						Str("event", eventKind).
						Str("branch", branch).
						Msg("no jobs matched, nothing to run")
					return nil
				}
				return err
			}

			// Retention runs opportunistically after each run.
			if policy := app.retentionPolicy(); policy.Enabled() {
				if evicted, evictErr := app.artifacts.Evict(ctx, policy); evictErr != nil {
					logger.Warn().Err(evictErr).Msg("artifact eviction failed")
				} else if evicted > 0 {
					logger.Debug().Int("evicted", evicted).Msg("artifacts evicted")
				}
			}

			printRunSummary(cmd, record)

			if record.Status != constants.RunStatusSucceeded {
				return fmt.Errorf("run %s %s", record.ID, record.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "pipeline", "p", DefaultPipelineFile, "pipeline definition file")
	cmd.Flags().StringVarP(&eventKind, "event", "e", "manual", "trigger event kind (push, pull_request, manual)")
	cmd.Flags().StringVarP(&branch, "branch", "b", "main", "branch the event refers to")
	cmd.Flags().StringVar(&commitSHA, "sha", "", "commit SHA the event refers to")

	parent.AddCommand(cmd)
}

// parseTriggerKind converts a flag value to a trigger kind.
func parseTriggerKind(s string) (constants.TriggerKind, error) {
	switch s {
	case "push":
		return constants.TriggerPush, nil
	case "pull_request":
		return constants.TriggerPullRequest, nil
	case "manual":
		return constants.TriggerManual, nil
	}
	return "", fmt.Errorf("%w: unknown event kind %q", slipwayerrors.ErrConfigInvalid, s)
}

// printRunSummary writes a per-job result table to stdout.
func printRunSummary(cmd *cobra.Command, record *domain.RunRecord) {
	cmd.Printf("Run %s (%s): %s\n", record.ID, record.Pipeline, record.Status)
	for i := range record.Jobs {
		job := &record.Jobs[i]
		cmd.Printf("  %-20s %s\n", job.Name, job.Status)
		for j := range job.Steps {
			step := &job.Steps[j]
			cmd.Printf("    %-18s %s\n", step.Name, step.Status)
		}
	}
	if record.Artifact != nil {
		cmd.Printf("Artifact: %s (%s, %d bytes)\n",
			record.Artifact.Name, record.Artifact.Digest, record.Artifact.Size)
	}
}
