package cli

import (
	"github.com/spf13/cobra"
)

// AddArtifactsCommand adds the artifacts command group to the parent command.
func AddArtifactsCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect and prune stored artifacts",
	}

	cmd.AddCommand(newArtifactsListCmd())
	cmd.AddCommand(newArtifactsPruneCmd())

	parent.AddCommand(cmd)
}

// newArtifactsListCmd creates the artifacts list subcommand.
func newArtifactsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored artifacts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			refs, err := app.artifacts.List(ctx)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				cmd.Println("No artifacts found.")
				return nil
			}

			cmd.Printf("%-24s %-28s %-12s %-20s\n", "RUN", "NAME", "SIZE", "CREATED")
			for _, ref := range refs {
				cmd.Printf("%-24s %-28s %-12d %-20s\n",
					ref.RunID,
					ref.Name,
					ref.Size,
					ref.CreatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return nil
		},
	}
}

// newArtifactsPruneCmd creates the artifacts prune subcommand.
func newArtifactsPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the configured retention policy now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			policy := app.retentionPolicy()
			if !policy.Enabled() {
				cmd.Println("Retention is disabled; nothing to prune.")
				return nil
			}

			evicted, err := app.artifacts.Evict(ctx, policy)
			if err != nil {
				return err
			}
			cmd.Printf("Evicted %d artifact(s).\n", evicted)
			return nil
		},
	}
}
