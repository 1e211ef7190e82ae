// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/config"
)

// Setup installs the global logger according to cfg. Console output is used
// unless format is "json". When a file is configured, logs are also written
// to a daily rotated file next to it.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rl, err := newRotator(cfg.File, cfg.MaxAge)
		if err != nil {
			return nil, err
		}
		out = zerolog.MultiLevelWriter(out, rl)
		closer = rl
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func newRotator(path string, maxAge time.Duration) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	rl, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open rotating log file: %w", err)
	}
	return rl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
