package logger

import (
	"github.com/rs/zerolog"
)

// NewTestLogger returns a Logger that discards everything. Tests use it to
// keep output quiet without touching the global logger.
func NewTestLogger() Logger {
	zlog := zerolog.Nop()
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}
