package logger

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

func createHandler(config Config) (slog.Handler, error) {
	level, err := parseLogLevel(config.Env, config.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	switch strings.ToLower(config.Env) {
	case "prod":
		opts.ReplaceAttr = chainReplacers(sourceReplacer(config.SourcePathLength))
		return slog.NewJSONHandler(config.Output, opts), nil

	case "dev":
		opts.ReplaceAttr = chainReplacers(
			timeReplacer(config.TimeFormat),
			sourceReplacer(config.SourcePathLength),
		)
		return slog.NewTextHandler(config.Output, opts), nil

	case "test":
		return slog.NewTextHandler(config.Output, opts), nil

	default:
		return nil, fmt.Errorf("unknown environment: %s (use 'dev', 'prod', or 'test')", config.Env)
	}
}

// parseLogLevel prefers an explicit level and falls back to the env default
func parseLogLevel(env, explicit string) (slog.Level, error) {
	if explicit != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(explicit)); err != nil {
			return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", explicit, err)
		}
		return level, nil
	}

	switch strings.ToLower(env) {
	case "dev":
		return slog.LevelDebug, nil
	case "test":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, nil
	}
}

type replacer func(groups []string, a slog.Attr) slog.Attr

func chainReplacers(rs ...replacer) replacer {
	return func(groups []string, a slog.Attr) slog.Attr {
		for _, r := range rs {
			if r == nil {
				continue
			}
			a = r(groups, a)
		}
		return a
	}
}

// timeReplacer formats the record time for human eyes in dev logs
func timeReplacer(format string) replacer {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.TimeKey || len(groups) > 0 {
			return a
		}
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(format))
		}
		return a
	}
}

// sourceReplacer shortens source file paths
func sourceReplacer(segments int) replacer {
	if segments <= 0 {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.SourceKey {
			return a
		}
		if source, ok := a.Value.Any().(*slog.Source); ok && source != nil {
			source.File = shortenPath(source.File, segments)
		}
		return a
	}
}

// shortenPath keeps only the last n segments of a path
func shortenPath(path string, segments int) string {
	if segments <= 0 {
		return path
	}

	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= segments {
		return path
	}

	return strings.Join(parts[len(parts)-segments:], "/")
}
