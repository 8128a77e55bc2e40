// Package logging builds the process-wide structured logger. Grounded on the
// teacher's internal/utils/logger.go (logrus.New + TextFormatter + level
// parsing); adds a redaction hook the teacher never needed, grounded on
// original_source's services/notifications.py _target_fingerprint pattern.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a configured logger at the given level ("debug", "info", ...)
// writing JSON lines to both stdout and the file at logPath (empty disables
// the file sink). Every entry passes through the redactor hook first.
func New(level, logPath string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	logger.SetOutput(os.Stdout)

	logger.AddHook(NewRedactHook())

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, err
		}
		logger.AddHook(&fileHook{file: f, formatter: &logrus.JSONFormatter{}})
	}

	return logger, nil
}

// SetLevel changes the live log level, used by the settings manager (C10)
// when an operator updates log_level without a restart.
func SetLevel(logger *logrus.Logger, level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(parsed)
	return nil
}

// fileHook duplicates every entry to an appended file handle. No rotation
// library is wired (see DESIGN.md stdlib-only choices) — operators rotate via
// logrotate against logPath, the same posture the teacher takes with its
// single stdout sink.
type fileHook struct {
	file      *os.File
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.file.Write(line)
	return err
}
