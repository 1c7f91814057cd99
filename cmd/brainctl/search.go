package main

import (
	"fmt"
	"strings"

	"secondbrain-be/internal/dto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid search and print the ranked results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		documents, _ := cmd.Flags().GetBool("documents")
		query := strings.Join(args, " ")

		container, err := buildContainer()
		if err != nil {
			return err
		}
		defer container.Close()

		req := dto.HybridSearchRequest{Query: query, Limit: limit}
		if documents {
			hits, err := container.SearchService.Documents(cmd.Context(), &dto.DocumentSearchRequest{
				HybridSearchRequest: req,
				DocTopK:             3,
				DocTopSegments:      3,
			})
			if err != nil {
				return err
			}
			printDocuments(cmd, hits)
			return nil
		}

		hits, err := container.SearchService.Hybrid(cmd.Context(), &req)
		if err != nil {
			return err
		}
		printSegments(cmd, hits)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("limit", 10, "number of results")
	searchCmd.Flags().Bool("documents", false, "rank whole documents instead of segments")
}

func printSegments(cmd *cobra.Command, hits []*dto.HybridHitResponse) {
	w := cmd.OutOrStdout()
	if len(hits) == 0 {
		color.Yellow("No results.")
		return
	}
	for _, h := range hits {
		color.New(color.FgCyan, color.Bold).Fprintf(w, "#%d ", h.Rank)
		fmt.Fprintf(w, "%s  [%s/%s]  score=%.5f\n", h.DocumentTitle, h.SourceSystem, h.SourceRole, h.Score)
		fmt.Fprintf(w, "    %s\n", oneLine(h.Snippet))
	}
}

func printDocuments(cmd *cobra.Command, hits []*dto.DocumentHitResponse) {
	w := cmd.OutOrStdout()
	if len(hits) == 0 {
		color.Yellow("No results.")
		return
	}
	for i, h := range hits {
		color.New(color.FgCyan, color.Bold).Fprintf(w, "#%d ", i+1)
		fmt.Fprintf(w, "%s  [%s]  score=%.5f  matches=%d\n", h.DocumentTitle, h.SourceSystem, h.DocumentScore, h.MatchCount)
		for _, seg := range h.TopSegments {
			fmt.Fprintf(w, "    - %s\n", oneLine(seg.Snippet))
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
