package logger

import (
	"io"
	"log/slog"

	sloghook "github.com/shogo82148/logrus-slog-hook"
	"github.com/sirupsen/logrus"
)

func init() {
	logrus.AddHook(sloghook.New(slog.Default().Handler()))
	logrus.SetFormatter(sloghook.NewFormatter())
	logrus.SetOutput(io.Discard)
}

// SlogBackedLogrus returns a logrus logger whose output is forwarded to the
// default slog handler, for libraries that only know how to log via logrus.
func SlogBackedLogrus() *logrus.Logger {
	return logrus.StandardLogger()
}
