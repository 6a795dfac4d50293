package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the logrus instance shared by the whole service.
func NewLogger() *logrus.Logger {
	log := logrus.New()

	// JSON output so the reverse proxy's log shipper can parse entries.
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	level := logrus.InfoLevel
	if parsed, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		level = parsed
	}
	log.SetLevel(level)

	return log
}
