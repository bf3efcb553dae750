package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used by long-running components
// (server, orchestrator). Defaults to a no-op logger until Init runs.
var Logger = zap.NewNop()

// CLILogger is the human-facing logger used by CLI commands. It writes
// console-encoded output without timestamps so command output stays clean.
var CLILogger = zap.NewNop()

// Init configures both package loggers at the given level.
//
// Level accepts the standard zap names: debug, info, warn, error.
func Init(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	serverCfg := zap.NewProductionConfig()
	serverCfg.Level = zap.NewAtomicLevelAt(lvl)
	serverCfg.EncoderConfig.TimeKey = "ts"
	serverCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := serverCfg.Build()
	if err != nil {
		return fmt.Errorf("build server logger: %w", err)
	}

	cliCfg := zap.NewDevelopmentConfig()
	cliCfg.Level = zap.NewAtomicLevelAt(lvl)
	cliCfg.EncoderConfig.TimeKey = ""
	cliCfg.EncoderConfig.CallerKey = ""
	cliCfg.DisableStacktrace = true

	cliLogger, err := cliCfg.Build()
	if err != nil {
		return fmt.Errorf("build cli logger: %w", err)
	}

	Logger = logger
	CLILogger = cliLogger
	return nil
}

// Sync flushes any buffered log entries. Safe to call at process exit.
func Sync() {
	_ = Logger.Sync()
	_ = CLILogger.Sync()
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}
