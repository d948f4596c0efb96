// internal/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/supplymatch-backend/internal/config"
)

// New builds a logrus logger from config. Production always logs JSON.
func New(cfg config.LogConfig, environment string) *logrus.Logger {
	return NewWithOutput(cfg, environment, os.Stderr)
}

func NewWithOutput(cfg config.LogConfig, environment string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if environment == "production" || strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// Discard returns a logger that drops everything. Used where a caller does
// not care about output, such as one-shot CLI helpers.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
