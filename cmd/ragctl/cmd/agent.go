package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draco28/ragcore/internal/agent"
	"github.com/draco28/ragcore/internal/config"
	"github.com/draco28/ragcore/internal/output"
	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/rag"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the bounded agent reasoning loop",
	}
	cmd.AddCommand(newAgentRunCmd())
	return cmd
}

func newAgentRunCmd() *cobra.Command {
	var maxIterations int

	cmd := &cobra.Command{
		Use:   "run <dir> <question>",
		Short: "Run the agent loop over a directory-backed search tool",
		Long: `Builds a fresh in-memory index from <dir>, registers a single "search"
tool backed by the RAG engine's Query method, and runs the bounded
Thought/Action/Observation loop for <question>, printing each step of the
trace. Model calls are served by a dependency-free deterministic chat
model (no inference back-end is wired — see providers.StaticChatModel).`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			question := strings.Join(args[1:], " ")
			return runAgent(cmd, dir, question, maxIterations)
		},
	}
	cmd.Flags().IntVar(&maxIterations, "max-iterations", agent.DefaultMaxIterations, "Maximum agent loop iterations")
	return cmd
}

func runAgent(cmd *cobra.Command, dir, question string, maxIterations int) error {
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

	registry := agent.NewRegistry()
	registry.Register(&searchTool{engine: p.Engine})

	model := providers.NewStaticChatModel()
	a := agent.NewAgent(model, registry)
	if maxIterations > 0 {
		a.MaxIterations = maxIterations
	} else if cfg.Agent.MaxIterations > 0 {
		a.MaxIterations = cfg.Agent.MaxIterations
	}

	result, err := a.Execute(cmd.Context(), []providers.ChatMessage{
		{Role: providers.RoleUser, Content: question},
	}, agent.Options{
		OnThought:  func(t string) { out.Status("💭", t) },
		OnToolCall: func(tc providers.ToolCall) { out.Statusf("🔧", "%s(%s)", tc.Name, tc.Arguments) },
		OnObservation: func(o agent.Observation) {
			if o.Success {
				out.Statusf("✅", "%v", o.Result)
			} else {
				out.Statusf("❌", "%s", o.Error)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("agent run failed: %w", err)
	}

	out.Newline()
	out.Successf("output: %s", result.Output)
	out.Statusf("", "%d trace steps", len(result.Trace))
	return nil
}

// searchTool adapts the rag.Engine into an agent.Tool so the agent loop can
// retrieve context (spec.md §4.16's schema-validated tool dispatch).
type searchTool struct {
	engine *rag.Engine
}

func (t *searchTool) Name() string        { return "search" }
func (t *searchTool) Description() string { return "Search the indexed corpus for relevant context" }

func (t *searchTool) ParametersSchema() map[string]any {
	return map[string]any{
		"required": []string{"query"},
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	}
}

func (t *searchTool) OutputSchema() map[string]any { return nil }

func (t *searchTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	query, _ := args["query"].(string)
	result, err := t.engine.Query(ctx, query, rag.QueryOptions{Rerank: true})
	if err != nil {
		return nil, err
	}
	return agent.ToolResult{
		"content": result.Content,
		"sources": result.Sources,
	}, nil
}
