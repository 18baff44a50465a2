package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draco28/ragcore/internal/config"
	"github.com/draco28/ragcore/internal/output"
	"github.com/draco28/ragcore/internal/rag"
)

type searchOptions struct {
	limit   int
	format  string // "text" | "json"
	rerank  bool
	enhance bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <dir> <query>",
		Short: "Index a directory and run one hybrid-retrieval query against it",
		Long: `Builds a fresh in-memory index from <dir> (see 'index --help'), then
runs the full retrieve -> rerank -> assemble pipeline for <query> and prints
the assembled, token-budgeted context plus its source citations.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			query := strings.Join(args[1:], " ")
			return runSearch(cmd, dir, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of retrieved chunks")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", true, "Apply the configured reranker (rerank.strategy)")
	cmd.Flags().BoolVar(&opts.enhance, "enhance", false, "Enhance the query before retrieval (requires an Enhancer; no-op without one)")

	return cmd
}

func runSearch(cmd *cobra.Command, dir, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	chunks, err := loadCorpus(dir)
	if err != nil {
		return err
	}

	p, err := buildPipeline(cfg, chunks)
	if err != nil {
		return err
	}

	result, err := p.Engine.Query(cmd.Context(), query, rag.QueryOptions{
		TopK:    opts.limit,
		Rerank:  opts.rerank,
		Enhance: opts.enhance,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out.Statusf("🔍", "query %q: %d retrieved, %d assembled (~%d tokens, from cache: %v)",
		query, result.Metadata.RetrievedCount, result.Metadata.AssembledCount, result.EstimatedTokens, result.Metadata.FromCache)
	out.Newline()
	for _, src := range result.Sources {
		out.Statusf("", "[%d] %s (relevance: %.3f)", src.Index, src.ChunkID, src.Relevance)
	}
	out.Newline()
	out.Code(result.Content)
	return nil
}
