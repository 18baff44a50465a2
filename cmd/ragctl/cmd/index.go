package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draco28/ragcore/internal/config"
	"github.com/draco28/ragcore/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Build an in-memory index from a directory of text files and report stats",
		Long: `Walks <dir> for .txt/.md files, splits each into paragraph chunks,
embeds and inserts them into a fresh HNSW vector store and BM25 index, then
reports index statistics. The index is held in memory only — use 'search',
'rerank-demo', or 'agent run' to query a freshly rebuilt index in one step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0])
		},
	}
	return cmd
}

func runIndex(cmd *cobra.Command, dir string) error {
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

	stats := p.Retriever.Rankers
	out.Successf("indexed %d chunks from %s", len(chunks), dir)
	out.Statusf("", "rankers: %d (%s)", len(stats), rankerNames(stats))
	out.Statusf("", "embedding dimensions: %d", p.Embedder.Dimensions())
	return nil
}
