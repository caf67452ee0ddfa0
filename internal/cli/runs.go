package cli

import (
	"github.com/spf13/cobra"
)

// AddRunsCommand adds the runs command to the parent command.
func AddRunsCommand(parent *cobra.Command) {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			records, err := app.runs.List(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("No runs found.")
				return nil
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			cmd.Printf("%-24s %-16s %-10s %-8s %-20s\n", "RUN", "PIPELINE", "STATUS", "JOBS", "CREATED")
			for _, record := range records {
				cmd.Printf("%-24s %-16s %-10s %-8d %-20s\n",
					record.ID,
					record.Pipeline,
					record.Status,
					len(record.Jobs),
					record.CreatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 for all)")

	parent.AddCommand(cmd)
}
