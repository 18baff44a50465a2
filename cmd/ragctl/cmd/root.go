// Package cmd provides the CLI commands for ragctl.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/draco28/ragcore/internal/logging"
	"github.com/draco28/ragcore/internal/profiling"
	"github.com/draco28/ragcore/pkg/version"
)

// Profiling flags.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug/json logging flags.
var (
	debugMode      bool
	jsonMode       bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ragctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Hybrid RAG runtime: index, search, rerank, and agent demos",
		Long: `ragctl exercises a hybrid retrieval-augmented generation pipeline —
HNSW dense retrieval, BM25 sparse retrieval, reciprocal-rank fusion,
reranking, and token-budgeted context assembly — plus a bounded
Thought/Action/Observation agent loop, all against an in-memory
reference store built fresh from a directory of text files.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("ragctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.ragctl/logs/")
	cmd.PersistentFlags().BoolVar(&jsonMode, "json", false, "Send logs only to the log file, never to stdout/stderr (command output is unchanged)")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRerankDemoCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if jsonMode {
		cleanup, err := logging.SetupStdioSafeMode()
		if err != nil {
			return fmt.Errorf("failed to setup stdio-safe logging: %w", err)
		}
		loggingCleanup = cleanup
	} else if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
