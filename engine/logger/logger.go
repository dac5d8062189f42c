package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// NewLogger creates a new Logger instance.
// Development mode uses the console encoder; otherwise output is JSON.
// With no output paths the logger writes to stderr.
//
// Parameters:
//   - development: use the development config
//   - debug: enable debug level
//   - outputPaths: zap sink URLs or file paths
//
// Returns:
//   - *Logger: the logger
//   - error: error if the config cannot be built
func NewLogger(development, debug bool, outputPaths ...string) (*Logger, error) {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(outputPaths) > 0 {
		config.OutputPaths = outputPaths
		config.ErrorOutputPaths = outputPaths
	} else {
		config.OutputPaths = []string{"stderr"}
		config.ErrorOutputPaths = []string{"stderr"}
	}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{zapLogger.Sugar()}, nil
}

// NewNop returns a Logger that discards everything.
//
// Returns:
//   - *Logger: the no-op logger
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.SugaredLogger.Sync()
}
