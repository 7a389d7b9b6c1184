package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

type Config struct {
	Env              string
	Level            string
	AddSource        bool
	Output           io.Writer
	TimeFormat       string
	SourcePathLength int
}

// Logger is a wrapper around slog.Logger with additional methods
type Logger struct {
	*slog.Logger
}

func New(config Config) (*Logger, error) {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.TimeFormat == "" {
		config.TimeFormat = time.TimeOnly
	}

	handler, err := createHandler(config)
	if err != nil {
		return nil, fmt.Errorf("failed to determine handler: %w", err)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return &Logger{
		Logger: logger,
	}, nil
}

// Component returns a child logger tagged with the component name
func (l *Logger) Component(name string) *slog.Logger {
	return l.With("component", name)
}
