package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed pending segments until none are left",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		container, err := buildContainer()
		if err != nil {
			return err
		}
		defer container.Close()

		color.Cyan("Backfilling embeddings (limit=%d, batch=%d)", limit, batchSize)
		res, err := container.VectorizerService.Backfill(cmd.Context(), limit, batchSize)
		if res != nil {
			color.Green("Batches: %d  Processed: %d  Ready: %d", res.Batches, res.Processed, res.Ready)
			if res.Failed > 0 {
				color.Yellow("Failed: %d (left pending, see the vectorizer log)", res.Failed)
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().Int("limit", 0, "stop after this many segments (0 = all pending)")
	backfillCmd.Flags().Int("batch-size", 0, "segments per batch (0 = default)")
}
