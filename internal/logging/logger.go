package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON zap logger. development and local environments log at
// debug by default, everything else at info. An explicit level wins.
func New(environment, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch environment {
	case "development", "local":
		cfg = zap.NewDevelopmentConfig()
	case "production", "staging", "uat", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log environment %q", environment)
	}
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true

	if strings.TrimSpace(level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
