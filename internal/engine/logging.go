package engine

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the verbose-file + concise-console split logger: full
// structured lines to logs/<engine>.log, human-readable lines to the
// console. No machine-parsed schema is promised on the console side.
func NewLogger(engineName string) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	logsDir := "logs"
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return zerolog.Logger{}, err
	}

	logPath := filepath.Join(logsDir, engineName+".log")
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Logger{}, err
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	writer := io.MultiWriter(file, console)

	logger := zerolog.New(writer).With().Timestamp().Str("engine", engineName).Logger()
	return logger, nil
}
