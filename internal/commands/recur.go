package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recurCmd = &cobra.Command{
	Use:   "recur",
	Short: "Create missing successors for completed recurring tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		run, err := a.tasks.ProcessRecurringTasks(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "processed %d recurring tasks, generated %d\n", run.Processed, run.Generated)
		for _, task := range run.Tasks {
			due := "no due date"
			if task.DueDate != nil {
				due = task.DueDate.In(a.cfg.Location).Format("2006-01-02 15:04")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s (%s)\n", task.ID, task.Title, due)
		}
		return nil
	},
}
