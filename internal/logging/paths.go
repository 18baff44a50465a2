package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.ragctl/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragctl", "logs")
	}
	return filepath.Join(home, ".ragctl", "logs")
}

// DefaultLogPath returns the default ragctl process log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "ragctl.log")
}

// RerankerLogPath returns the log path for an out-of-process cross-encoder
// reranker server (RerankConfig.Strategy "crossencoder"), which logs
// separately from the main ragctl process.
func RerankerLogPath() string {
	return filepath.Join(DefaultLogDir(), "reranker-server.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceCore is the main ragctl process logs (default).
	LogSourceCore LogSource = "core"
	// LogSourceReranker is the external cross-encoder reranker server logs.
	LogSourceReranker LogSource = "reranker"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.ragctl/logs/ragctl.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	// Try global path
	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. ragctl may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceCore:
		corePath := DefaultLogPath()
		checked = append(checked, corePath)
		if _, err := os.Stat(corePath); err == nil {
			paths = append(paths, corePath)
		}

	case LogSourceReranker:
		rerankPath := RerankerLogPath()
		checked = append(checked, rerankPath)
		if _, err := os.Stat(rerankPath); err == nil {
			paths = append(paths, rerankPath)
		}

	case LogSourceAll:
		corePath := DefaultLogPath()
		rerankPath := RerankerLogPath()
		checked = append(checked, corePath, rerankPath)

		if _, err := os.Stat(corePath); err == nil {
			paths = append(paths, corePath)
		}
		if _, err := os.Stat(rerankPath); err == nil {
			paths = append(paths, rerankPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: core, reranker, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "reranker":
		return LogSourceReranker
	case "all":
		return LogSourceAll
	default:
		return LogSourceCore
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	switch source {
	case LogSourceCore:
		return "To generate ragctl logs:\n  ragctl --debug search ..."
	case LogSourceReranker:
		return "To generate reranker server logs, run the crossencoder reranker's backing model server with logging enabled."
	case LogSourceAll:
		return "To generate logs:\n  core:     ragctl --debug search ...\n  reranker: run the crossencoder model server with logging enabled"
	default:
		return ""
	}
}
