package logger

import (
	"io"
	"log/slog"
	"os"
)

// InitLogger configures the default slog logger. Messages are written to
// stderr and, if filepath is non-empty, appended to the given file as well.
func InitLogger(filepath string, verbose bool, debug bool) (*slog.LevelVar, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}

	if debug {
		level = slog.LevelDebug
	}

	var writer io.Writer = os.Stderr

	if filepath != "" {
		f, err := os.OpenFile(filepath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}

		writer = io.MultiWriter(writer, f)
	}

	var handler slog.LevelVar
	handler.Set(level)

	logger := slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: &handler,
		// Add source information, if debug level is enabled.
		AddSource: debug,
	}))

	slog.SetDefault(logger)

	return &handler, nil
}

// Err is a helper function to ensure errors are always logged with the key
// "err". Additionally this becomes the single point in code, where we could
// tweak how errors are logged, e.g. to handle application specific error types
// or to add stack trace information in debug mode.
func Err(err error) slog.Attr {
	return slog.Any("err", err)
}
