package utils

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"zap2xml/config"
)

// NewLogger builds the process logger. Records always go to stdout; when
// cfg.File is set they are also written to a rotating log file. The returned
// closer releases the file and is never nil.
func NewLogger(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := config.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	var (
		out    io.Writer = stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(stdout, fileWriter)
		closer = fileWriter
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	// Route the standard library logger through the same sink so that
	// messages from dependencies end up in the log file too.
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags)

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
