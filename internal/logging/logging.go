// Package logging configures the logrus diagnostics sink shared by all
// gpuctl components.
package logging

import (
	"io"
	"os"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
)

// Init configures the standard logger for the command line
func Init(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetFormatter(formatter(lvl))
	return nil
}

// New returns a logger writing to out, for embedding and tests
func New(out io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(formatter(lvl))
	return logger, nil
}

func formatter(lvl log.Level) *nested.Formatter {
	return &nested.Formatter{
		TimestampFormat: time.RFC3339,
		HideKeys:        true,
		FieldsOrder:     []string{"vendor", "gpu", "setting", "dry_run"},
		NoColors:        lvl < log.DebugLevel,
	}
}
