package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draco28/ragcore/internal/config"
	"github.com/draco28/ragcore/internal/output"
	"github.com/draco28/ragcore/internal/rerank"
)

func newRerankDemoCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rerank-demo <dir> <query>",
		Short: "Show retrieval results before and after reranking",
		Long: `Builds a fresh in-memory index from <dir>, runs hybrid retrieval for
<query>, and prints the fused ranking side by side with the reranked
ordering (per the configured rerank.strategy), so the effect of reranking
on rank order is visible directly.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			query := strings.Join(args[1:], " ")
			return runRerankDemo(cmd, dir, query, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of retrieved chunks")
	return cmd
}

func runRerankDemo(cmd *cobra.Command, dir, query string, limit int) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.EqualFold(cfg.Rerank.Strategy, "none") {
		out.Warning("rerank.strategy is \"none\"; set it to mmr or llm in .ragctl.yaml to see a reordering")
	}

	chunks, err := loadCorpus(dir)
	if err != nil {
		return err
	}

	p, err := buildPipeline(cfg, chunks)
	if err != nil {
		return err
	}

	hybrid, err := p.Retriever.Retrieve(cmd.Context(), query, limit)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	out.Statusf("", "fused ranking (%d results):", len(hybrid))
	for i, h := range hybrid {
		out.Statusf("", "  %d. %s (rrf score: %.4f)", i+1, h.ID, h.RRFScore)
	}
	out.Newline()

	reranked, err := buildRerankerForDemo(cfg, p)
	if err != nil {
		return err
	}
	if reranked == nil {
		return nil
	}

	merged := toRetrievalResultsForDemo(hybrid)
	results, err := reranked.Rerank(cmd.Context(), query, merged, rerank.Options{TopK: limit})
	if err != nil {
		return fmt.Errorf("rerank failed: %w", err)
	}

	out.Statusf("", "reranked (%s, %d results):", cfg.Rerank.Strategy, len(results))
	for _, r := range results {
		out.Statusf("", "  %d. %s (was %d, score: %.4f)", r.NewRank, r.ID, r.OriginalRank, r.FinalScore)
	}
	return nil
}
