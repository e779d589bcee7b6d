package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/confirm-cli/internal/validate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract unresolved fields, then revalidate all records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		updated, err := runExtraction(cmd, st)
		if err != nil {
			return err
		}

		if err := validate.New(st).Run(ctx); err != nil {
			return err
		}

		zap.L().Info("run complete", zap.Int("fields_updated", updated))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
