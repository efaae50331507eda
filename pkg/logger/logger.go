package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a logger at the given level. Format "json" switches to the
// JSON formatter, anything else keeps colored text output.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return logger
}

// ForGroup returns an entry tagged with the acting user and group.
func ForGroup(logger logrus.FieldLogger, userID, groupID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"group_id": groupID,
	})
}
