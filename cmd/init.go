package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or migrate the confirmation tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "init")
		}

		zap.L().Info("store ready",
			zap.String("driver", cfg.Store.Driver),
			zap.String("database", cfg.Store.DatabaseURL),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
