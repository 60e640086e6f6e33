package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options tune a logger beyond its environment preset.
type Options struct {
	// Level is one of debug, info, warn, error. Empty keeps the preset level.
	Level string
	// Format is "json" or "console". Empty keeps the preset encoding.
	Format string
}

// NewLogger creates a zap logger for the given environment.
// prod uses JSON output, local/dev use colored console output.
// Logs always go to stderr: CLI commands print their results on stdout.
func NewLogger(env string, opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker", "test":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if opts.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	switch opts.Format {
	case "":
	case "json":
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		cfg.Encoding = "console"
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
