package logging

import (
	"log/slog"
)

// SetupStdioSafeMode initializes logging for invocations that write
// machine-readable output to stdout (ragctl's --json mode, or any command
// piped into another process). This is critical for output compliance:
//   - Logs ONLY to file (never stdout/stderr)
//   - Uses JSON format for structured logs
//   - Always enables debug level for complete diagnostics
//
// Any writes to stdout/stderr while a --json command is running would
// corrupt the output stream and break whatever is consuming it downstream.
func SetupStdioSafeMode() (func(), error) {
	cfg := Config{
		Level:         "debug", // always debug in stdio-safe mode for full diagnostics
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // never write to stderr in stdio-safe mode
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	slog.Info("stdio-safe logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}

// SetupStdioSafeModeWithLevel initializes stdio-safe logging with a specific level.
func SetupStdioSafeModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // never write to stderr in stdio-safe mode
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
