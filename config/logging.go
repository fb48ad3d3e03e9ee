package config

import (
	"fmt"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
)

// InitLogger installs the global logger at the configured level and format.
// Output goes to stdout unless outputPaths names other sinks.
func InitLogger(level, format string, outputPaths ...string) error {
	opt := option.DefaultLogOption()
	if level != "" {
		opt.Level = level
	}
	if format != "" {
		opt.Format = format
	}
	if len(outputPaths) > 0 {
		opt.OutputPaths = outputPaths
	}

	l, err := logger.New(opt)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(l)
	return nil
}
