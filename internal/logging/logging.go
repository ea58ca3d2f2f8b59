package logging

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New builds the process logger. format is "text" or "json".
func New(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logger.SetLevel(lvl)

	switch format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return logger, nil
}
