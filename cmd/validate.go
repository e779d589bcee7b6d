package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/confirm-cli/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Recompute validation statuses for all records",
	Long:  "Normalizes every source/extracted pair and overwrites each validation column with matched or unmatched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := validate.New(st).Run(ctx); err != nil {
			return err
		}

		zap.L().Info("validation complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
