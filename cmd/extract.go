package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/confirm-cli/internal/extract"
	"github.com/sells-group/confirm-cli/internal/resilience"
	"github.com/sells-group/confirm-cli/internal/store"
	"github.com/sells-group/confirm-cli/pkg/anthropic"
)

var extractConcurrency int

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract unresolved fields from raw confirmation text",
	Long:  "Calls the model once per unresolved record-field pair and persists the parsed values. Already-resolved pairs are never re-extracted.",
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

		zap.L().Info("extraction complete", zap.Int("fields_updated", updated))
		return nil
	},
}

// runExtraction wires the engine and processor and executes one pass.
func runExtraction(cmd *cobra.Command, st store.Store) (int, error) {
	if cfg.Anthropic.Key == "" {
		return 0, eris.New("anthropic API key is required (CONFIRM_ANTHROPIC_KEY)")
	}

	concurrency := cfg.Extract.Concurrency
	if cmd.Flags().Changed("concurrency") {
		concurrency = extractConcurrency
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)
	engine := extract.NewEngine(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	processor := extract.NewProcessor(st, engine, extract.ProcessorOpts{
		Concurrency: concurrency,
		Breaker: resilience.FromCircuitConfig(
			cfg.Extract.BreakerFailureThreshold,
			cfg.Extract.BreakerResetTimeoutSecs,
		),
	})

	return processor.Run(cmd.Context())
}

func init() {
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", 0, "records processed in parallel (overrides config; 1 = sequential)")
	rootCmd.AddCommand(extractCmd)
}
