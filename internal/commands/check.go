package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fire every due trigger once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.startBot(); err != nil {
			return err
		}

		res, err := a.dispatch.CheckAndFire(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: scanned %d, fired %d, delivered %d, failed %d, skipped %d, errors %d\n",
			res.RunID, res.Scanned, res.Fired, res.Delivered, res.Failed, res.Skipped, res.Errors)
		return nil
	},
}
