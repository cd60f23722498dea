package logging

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFileLogger writes JSON records to a size-rotated file. The terminal
// belongs to the REPL, so the client never logs to stdout.
//
// The returned closer flushes and closes the current log file.
func NewFileLogger(path, level string) (*SlogLogger, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	h := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: ParseLevel(level)})
	return NewSlogLogger(slog.New(h)), rotator
}
