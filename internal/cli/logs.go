package cli

import (
	"github.com/spf13/cobra"
)

// AddLogsCommand adds the logs command to the parent command.
func AddLogsCommand(parent *cobra.Command) {
	var showOutput bool

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Show the execution log of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			ctx := logger.WithContext(cmd.Context())

			app, err := newAppContext(ctx)
			if err != nil {
				return err
			}

			runID := args[0]
			data, err := app.runs.ReadLog(ctx, runID)
			if err != nil {
				return err
			}
			if len(data) > 0 {
				cmd.Print(string(data))
			}

			if !showOutput {
				return nil
			}

			// Step output lives in the run record, not the log file.
			record, err := app.runs.Get(ctx, runID)
			if err != nil {
				return err
			}
			for i := range record.Jobs {
				job := &record.Jobs[i]
				for j := range job.Steps {
					step := &job.Steps[j]
					if step.Output == "" {
						continue
					}
					cmd.Printf("--- %s / %s (%s)\n%s\n", job.Name, step.Name, step.Status, step.Output)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showOutput, "output", "o", false, "include captured step output")

	parent.AddCommand(cmd)
}
