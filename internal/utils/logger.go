package utils

import (
	"fmt"

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// ConfigureLogger sets the standard logrus logger's level and formatter: JSON
// in production, text with full timestamps otherwise.
func ConfigureLogger(level string, isProd bool) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	if isProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
